package evaluation

import (
	"reflect"
	"testing"
)

func TestParseFormCodes(t *testing.T) {
	tests := []struct {
		name string
		spec string
		kind Kind
		want map[Role]int
	}{
		{
			name: "practice full",
			spec: "e:2001;t:2002;m:2003",
			kind: KindPractice,
			want: map[Role]int{RoleStudent: 2001, RoleBoss: 2002, RoleMonitor: 2003},
		},
		{
			name: "monitoring full",
			spec: "e:3001;t:3002;m:3003",
			kind: KindMonitoring,
			want: map[Role]int{RoleStudent: 3001, RoleTeacher: 3002, RoleCoordinator: 3003},
		},
		{
			name: "zero disables role",
			spec: "e:2001;t:0;m:2003",
			kind: KindPractice,
			want: map[Role]int{RoleStudent: 2001, RoleMonitor: 2003},
		},
		{
			name: "missing marker",
			spec: "e:2001",
			kind: KindPractice,
			want: map[Role]int{RoleStudent: 2001},
		},
		{
			name: "whitespace tolerated",
			spec: " e : 2001 ; t : 2002 ",
			kind: KindPractice,
			want: map[Role]int{RoleStudent: 2001, RoleBoss: 2002},
		},
		{
			name: "junk ignored",
			spec: "x:9;e:abc;t:2002;;:",
			kind: KindPractice,
			want: map[Role]int{RoleBoss: 2002},
		},
		{
			name: "empty spec",
			spec: "",
			kind: KindPractice,
			want: map[Role]int{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseFormCodes(tt.spec, tt.kind); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseFormCodes() = %v, want %v", got, tt.want)
			}
		})
	}
}
