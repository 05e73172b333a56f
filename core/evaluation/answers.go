package evaluation

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Answer is one question's submitted value. At least one of Closed and Open
// must be set: closed questions carry a selected value, open ones free text,
// and mixed questions both.
type Answer struct {
	QuestionID string `json:"question_id" bson:"question_id"`
	Closed     string `json:"closed_answer,omitempty" bson:"closed_answer,omitempty"`
	Open       string `json:"open_answer,omitempty" bson:"open_answer,omitempty"`
}

// HasValue reports whether the answer carries any content at all.
func (a Answer) HasValue() bool {
	return a.Closed != "" || a.Open != ""
}

// rawAnswer accepts the field aliases historical clients still send. Aliases
// are resolved here at the decoding boundary; everything past this point sees
// the canonical Answer shape only.
type rawAnswer struct {
	QuestionID  json.RawMessage `json:"question_id"`
	PreguntaID  json.RawMessage `json:"pregunta_id"`
	Closed      json.RawMessage `json:"closed_answer"`
	Respuesta   json.RawMessage `json:"respuesta"`
	Value       json.RawMessage `json:"value"`
	Open        string          `json:"open_answer"`
	RespAbierta string          `json:"respuesta_abierta"`
	Text        string          `json:"text"`
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var raw rawAnswer
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decoding answer")
	}
	a.QuestionID = scalarString(raw.QuestionID, raw.PreguntaID)
	a.Closed = scalarString(raw.Closed, raw.Respuesta, raw.Value)
	a.Open = firstNonEmpty(raw.Open, raw.RespAbierta, raw.Text)
	return nil
}

// ParseAnswers decodes and normalizes a submitted answer list: aliases
// resolved, blank entries dropped, whitespace trimmed.
func ParseAnswers(data []byte) ([]Answer, error) {
	var in []Answer
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "decoding answers")
	}
	out := make([]Answer, 0, len(in))
	for _, a := range in {
		a.QuestionID = strings.TrimSpace(a.QuestionID)
		a.Closed = strings.TrimSpace(a.Closed)
		a.Open = strings.TrimSpace(a.Open)
		if a.QuestionID == "" || !a.HasValue() {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// scalarString renders the first present raw value as a string; closed values
// arrive either quoted or as bare numbers.
func scalarString(vals ...json.RawMessage) string {
	for _, v := range vals {
		if len(v) == 0 || string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		return string(v)
	}
	return ""
}
