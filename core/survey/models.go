package survey

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
)

// FormKey names the three forms a definition can carry: one answered by the
// evaluated student and two answered by the reviewers on either side.
type FormKey string

const (
	FormStudent FormKey = "student"
	FormTutor   FormKey = "tutor"
	FormMonitor FormKey = "monitor"
)

// Question types mirror the widgets the frontend renders.
const (
	QuestionText           QuestionType = "text"
	QuestionTextarea       QuestionType = "textarea"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionCheckbox       QuestionType = "checkbox"
	QuestionScale          QuestionType = "scale"
	QuestionDate           QuestionType = "date"
	QuestionNumber         QuestionType = "number"
)

type QuestionType string

func (qt QuestionType) valid() bool {
	switch qt {
	case QuestionText, QuestionTextarea, QuestionMultipleChoice,
		QuestionCheckbox, QuestionScale, QuestionDate, QuestionNumber:
		return true
	}
	return false
}

// ScaleBounds delimits a scale question. The labels name the extremes.
type ScaleBounds struct {
	Min      int    `json:"min" bson:"min"`
	Max      int    `json:"max" bson:"max"`
	MinLabel string `json:"min_label,omitempty" bson:"min_label,omitempty"`
	MaxLabel string `json:"max_label,omitempty" bson:"max_label,omitempty"`
}

// Question is one item of a form. Choice questions carry the selectable
// options, scale questions their bounds; the rest collect free input.
type Question struct {
	ID       string       `json:"id" bson:"id"`
	Order    int          `json:"order" bson:"order"`
	Text     string       `json:"text" bson:"text"`
	Type     QuestionType `json:"type" bson:"type"`
	Options  []string     `json:"options,omitempty" bson:"options,omitempty"`
	Scale    *ScaleBounds `json:"scale,omitempty" bson:"scale,omitempty"`
	Required bool         `json:"required" bson:"required"`
}

// Form groups the questions served under one form code.
type Form struct {
	Code      int        `json:"code" bson:"code"`
	Title     string     `json:"title,omitempty" bson:"title,omitempty"`
	Questions []Question `json:"questions" bson:"questions"`
}

// Definition lifecycle.
const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

type Status string

// Definition is a stored survey: up to three forms keyed by their audience.
// Archived definitions are kept for past campaigns but no longer resolve
// by form code.
type Definition struct {
	ID           string           `json:"id" bson:"_id"`
	SourceItemID int              `json:"source_item_id,omitempty" bson:"source_item_id,omitempty"`
	Name         string           `json:"name" bson:"name"`
	Description  string           `json:"description,omitempty" bson:"description,omitempty"`
	Status       Status           `json:"status" bson:"status"`
	Forms        map[FormKey]Form `json:"forms" bson:"forms"`
	CreatedAt    time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" bson:"updated_at"`
}

// Form returns the form stored under key, if any.
func (d Definition) Form(key FormKey) (Form, bool) {
	f, ok := d.Forms[key]
	return f, ok
}

// Questions returns the key's question list ordered for display, but only
// when the stored form actually carries formCode; a code mismatch means the
// caller resolved the wrong form and yields an empty set rather than the
// wrong questions.
func (d Definition) Questions(key FormKey, formCode int) []Question {
	f, ok := d.Forms[key]
	if !ok || f.Code != formCode {
		return nil
	}
	qs := make([]Question, len(f.Questions))
	copy(qs, f.Questions)
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
	return qs
}

// HasFormCode reports whether any of the definition's forms carries code.
func (d Definition) HasFormCode(code int) bool {
	for _, f := range d.Forms {
		if f.Code == code {
			return true
		}
	}
	return false
}

// NewDefinition is the creation payload. Status defaults to ACTIVE.
type NewDefinition struct {
	SourceItemID int              `json:"source_item_id"`
	Name         string           `json:"name" validate:"required"`
	Description  string           `json:"description"`
	Status       Status           `json:"status" validate:"omitempty,oneof=DRAFT ACTIVE ARCHIVED"`
	Forms        map[FormKey]Form `json:"forms" validate:"required,min=1"`
}

func (nd NewDefinition) Validate() error {
	if err := core.Validate.Struct(nd); err != nil {
		return core.TranslateError(err)
	}
	for key, f := range nd.Forms {
		switch key {
		case FormStudent, FormTutor, FormMonitor:
		default:
			return core.NewValidationError(errors.New("invalid input"),
				core.FieldError{Field: "forms", Error: "unknown form key " + string(key)})
		}
		if f.Code <= 0 {
			return core.NewValidationError(errors.New("invalid input"),
				core.FieldError{Field: "forms." + string(key) + ".code", Error: "must be a positive form code"})
		}
		for _, q := range f.Questions {
			field := "forms." + string(key) + ".questions"
			if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.Text) == "" {
				return core.NewValidationError(errors.New("invalid input"),
					core.FieldError{Field: field, Error: "questions need an id and a text"})
			}
			if !q.Type.valid() {
				return core.NewValidationError(errors.New("invalid input"),
					core.FieldError{Field: field, Error: "unknown question type " + string(q.Type)})
			}
			switch q.Type {
			case QuestionMultipleChoice, QuestionCheckbox:
				if len(q.Options) == 0 {
					return core.NewValidationError(errors.New("invalid input"),
						core.FieldError{Field: field, Error: "choice questions need options"})
				}
			case QuestionScale:
				if q.Scale != nil && q.Scale.Min >= q.Scale.Max {
					return core.NewValidationError(errors.New("invalid input"),
						core.FieldError{Field: field, Error: "scale bounds must satisfy min < max"})
				}
			}
		}
	}
	return nil
}
