package evaluation

import (
	"reflect"
	"testing"
)

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    []Answer
		wantErr bool
	}{
		{
			name: "canonical shape",
			data: `[{"question_id":"q1","closed_answer":"4"},{"question_id":"q2","open_answer":"bien"}]`,
			want: []Answer{
				{QuestionID: "q1", Closed: "4"},
				{QuestionID: "q2", Open: "bien"},
			},
		},
		{
			name: "legacy aliases",
			data: `[{"pregunta_id":"q1","respuesta":"si"},{"question_id":"q2","value":"3","respuesta_abierta":"texto"}]`,
			want: []Answer{
				{QuestionID: "q1", Closed: "si"},
				{QuestionID: "q2", Closed: "3", Open: "texto"},
			},
		},
		{
			name: "numeric ids and values",
			data: `[{"pregunta_id":12,"respuesta":5}]`,
			want: []Answer{{QuestionID: "12", Closed: "5"}},
		},
		{
			name: "both variant",
			data: `[{"question_id":"q1","closed_answer":"2","open_answer":"comentario"}]`,
			want: []Answer{{QuestionID: "q1", Closed: "2", Open: "comentario"}},
		},
		{
			name: "blank entries dropped",
			data: `[{"question_id":"q1"},{"question_id":"","closed_answer":"3"},{"question_id":"q2","closed_answer":" 4 "}]`,
			want: []Answer{{QuestionID: "q2", Closed: "4"}},
		},
		{
			name: "null closed ignored",
			data: `[{"question_id":"q1","closed_answer":null,"open_answer":"ok"}]`,
			want: []Answer{{QuestionID: "q1", Open: "ok"}},
		},
		{
			name:    "not an array",
			data:    `{"question_id":"q1"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAnswers([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAnswers() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAnswers() = %v, want %v", got, tt.want)
			}
		})
	}
}
