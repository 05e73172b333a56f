package evaluation

import (
	"time"

	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
)

type (
	Role        string
	Kind        string
	Status      string
	EmailStatus string
	Variant     string
)

// Roles answering an evaluation. Practice campaigns address students, their
// practice supervisors ("bosses") and monitors; monitoring campaigns address
// students, teachers and coordinators.
const (
	RoleStudent     Role = "student"
	RoleBoss        Role = "boss"
	RoleMonitor     Role = "monitor"
	RoleTeacher     Role = "teacher"
	RoleCoordinator Role = "coordinator"
)

// Evaluation kinds.
const (
	KindPractice   Kind = "PRACTICE"
	KindMonitoring Kind = "MONITORING"
)

// Evaluation lifecycle statuses.
const (
	StatusCreated   Status = "CREATED"
	StatusSent      Status = "SENT"
	StatusFinalized Status = "FINALIZED"
	StatusCancelled Status = "CANCELLED"
)

// Email dispatch statuses.
const (
	EmailNotSent EmailStatus = "NOT_SENT"
	EmailSent    EmailStatus = "SENT"
	EmailPartial EmailStatus = "PARTIAL"
	EmailFailed  EmailStatus = "FAILED"
)

// Reminder alert units and anchors.
const (
	AlertDays   AlertUnit = "DAYS"
	AlertWeeks  AlertUnit = "WEEKS"
	AlertMonths AlertUnit = "MONTHS"

	AlertAfterStart AlertWhen = "AFTER_START_PRACTICE"
	AlertBeforeEnd  AlertWhen = "BEFORE_END_PRACTICE"
)

type (
	AlertUnit string
	AlertWhen string
)

// AlertSpec configures when a campaign's reminder fires, as an offset from
// either end of the practice window.
type AlertSpec struct {
	Value int       `json:"value" bson:"value"`
	Unit  AlertUnit `json:"unit" bson:"unit"`
	When  AlertWhen `json:"when" bson:"when"`
}

// Due resolves the alert against a campaign's window.
func (a AlertSpec) Due(start, finish time.Time) time.Time {
	var offset time.Duration
	switch a.Unit {
	case AlertWeeks:
		offset = time.Duration(a.Value) * 7 * 24 * time.Hour
	case AlertMonths:
		offset = time.Duration(a.Value) * 30 * 24 * time.Hour
	default:
		offset = time.Duration(a.Value) * 24 * time.Hour
	}
	if a.When == AlertBeforeEnd {
		return finish.Add(-offset)
	}
	return start.Add(offset)
}

// Monitor variants: a legalization may carry a primary and a secondary
// monitor, each entitled to their own token.
const (
	VariantNone             Variant = ""
	VariantMonitorPrimary   Variant = "user_tutor"
	VariantMonitorSecondary Variant = "user_tutor_2"
)

// Enrollment statuses excluded from eligibility, per kind.
var (
	practiceExcludedStatuses   = []string{"CTP_CANCEL", "CANCELLED", "DELETED", "CTP_REJECTED"}
	monitoringExcludedStatuses = []string{"CANCELLED", "DELETED", "CANCELED", "CREATED", "REVIEWING"}
)

// Roles returns the roles a campaign of this kind addresses, in dispatch order.
func (k Kind) Roles() []Role {
	if k == KindMonitoring {
		return []Role{RoleStudent, RoleTeacher, RoleCoordinator}
	}
	return []Role{RoleStudent, RoleBoss, RoleMonitor}
}

// ExcludedStatuses returns the enrollment statuses never eligible for this kind.
func (k Kind) ExcludedStatuses() []string {
	if k == KindMonitoring {
		return monitoringExcludedStatuses
	}
	return practiceExcludedStatuses
}

func ValidRole(r Role) bool {
	switch r {
	case RoleStudent, RoleBoss, RoleMonitor, RoleTeacher, RoleCoordinator:
		return true
	}
	return false
}

func ValidKind(k Kind) bool {
	return k == KindPractice || k == KindMonitoring
}

// ParticipantRef is one eligible (legalization, email) pair for a role.
// Participant lists are replaced wholesale on each eligibility run; token
// linkage survives through the issuer's key-based reconciliation, not
// through these lists.
type ParticipantRef struct {
	LegalizationID int     `json:"legalization_id" bson:"legalization_id"`
	Email          string  `json:"email" bson:"email"`
	Variant        Variant `json:"variant,omitempty" bson:"variant,omitempty"`
}

// Evaluation is one campaign. Evaluations are never deleted, only
// status-transitioned.
type Evaluation struct {
	ID       string `json:"id" bson:"_id"`
	SourceID int    `json:"source_id,omitempty" bson:"source_id,omitempty"` // id in the relational store, 0 if unsynced
	Name     string `json:"name" bson:"name"`
	Period   int    `json:"period" bson:"period"`
	Kind     Kind   `json:"kind" bson:"kind"`

	// Eligibility filters. PracticeType applies to practice campaigns,
	// CategoryIDs to monitoring ones; ProgramIDs to both.
	PracticeType int   `json:"practice_type,omitempty" bson:"practice_type,omitempty"`
	CategoryIDs  []int `json:"category_ids,omitempty" bson:"category_ids,omitempty"`
	ProgramIDs   []int `json:"program_ids,omitempty" bson:"program_ids,omitempty"`

	// SurveyRef is the relational item id whose value_for_reports encodes the
	// per-role form codes; FormCodes holds the parsed result. A zero code
	// means the role is disabled for this campaign.
	SurveyRef int          `json:"survey_ref,omitempty" bson:"survey_ref,omitempty"`
	FormCodes map[Role]int `json:"form_codes,omitempty" bson:"form_codes,omitempty"`

	StartDate  time.Time  `json:"start_date" bson:"start_date"`
	FinishDate time.Time  `json:"finish_date" bson:"finish_date"`
	Alert      *AlertSpec `json:"alert,omitempty" bson:"alert,omitempty"`

	Status      Status      `json:"status" bson:"status"`
	EmailStatus EmailStatus `json:"email_status" bson:"email_status"`
	DateSent    *time.Time  `json:"date_sent,omitempty" bson:"date_sent,omitempty"`

	// Population snapshot from the latest eligibility run, keyed by role.
	Participants map[Role][]ParticipantRef `json:"participants,omitempty" bson:"participants,omitempty"`
	Totals       map[Role]int              `json:"totals,omitempty" bson:"totals,omitempty"`
	Percentages  map[Role]int              `json:"percentages,omitempty" bson:"percentages,omitempty"`

	CreatedBy string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty" bson:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsOpen reports whether the campaign still accepts responses.
func (ev Evaluation) IsOpen(now time.Time) bool {
	return ev.Status != StatusFinalized && ev.Status != StatusCancelled && !now.After(ev.FinishDate)
}

// AccessToken is a single-use credential for one (evaluation, legalization,
// role, variant) slot. Secret is the url-safe hex credential embedded in the
// mailed link; the tuple key is unique in the store.
type AccessToken struct {
	ID             string     `json:"id" bson:"_id"`
	EvaluationID   string     `json:"evaluation_id" bson:"evaluation_id"`
	LegalizationID int        `json:"legalization_id" bson:"legalization_id"`
	Role           Role       `json:"role" bson:"role"`
	Variant        Variant    `json:"variant,omitempty" bson:"variant,omitempty"`
	Secret         string     `json:"-" bson:"secret"`
	Link           string     `json:"link" bson:"link"`
	Email          string     `json:"email" bson:"email"`
	FormCode       int        `json:"form_code" bson:"form_code"`
	Used           bool       `json:"used" bson:"used"`
	UsedAt         *time.Time `json:"used_at,omitempty" bson:"used_at,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at" bson:"expires_at"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}

// Expired reports whether the token's validity window has passed.
func (t AccessToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Key identifies the slot a token fills within its evaluation and role.
func (t AccessToken) Key() TokenKey {
	return TokenKey{LegalizationID: t.LegalizationID, Variant: t.Variant}
}

// TokenKey is the per-role reconciliation key used by the issuer.
type TokenKey struct {
	LegalizationID int
	Variant        Variant
}

// SlotCompleted marks an answered slot; a slot only ever exists completed.
const SlotCompleted SlotStatus = "COMPLETED"

type SlotStatus string

// ResponseSlot holds one role's submitted answers within a response record.
type ResponseSlot struct {
	Answers    []Answer   `json:"answers" bson:"answers"`
	FormCode   int        `json:"form_code" bson:"form_code"`
	Status     SlotStatus `json:"status" bson:"status"`
	AnsweredAt time.Time  `json:"answered_at" bson:"answered_at"`
}

// ResponseRecord aggregates, per (evaluation, legalization), the answers of
// every role. Each role occupies an independent slot written at most once.
type ResponseRecord struct {
	ID             string                `json:"id" bson:"_id"`
	EvaluationID   string                `json:"evaluation_id" bson:"evaluation_id"`
	LegalizationID int                   `json:"legalization_id" bson:"legalization_id"`
	Slots          map[Role]ResponseSlot `json:"slots" bson:"slots"`
	CreatedAt      time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at" bson:"updated_at"`
}

// ParticipantNames carries the display names rendered into invitation emails,
// looked up in bulk from the relational store.
type ParticipantNames struct {
	StudentName string
	TutorName   string
	MonitorName string
	ProgramName string
}

// Criteria narrows an eligibility query. Zero values mean "no filter" except
// ExcludedStatuses, which callers fill from Kind.ExcludedStatuses.
type Criteria struct {
	Period           int
	PracticeType     int
	CategoryIDs      []int
	ProgramIDs       []int
	ExcludedStatuses []string
}

// CriteriaFor derives the eligibility criteria encoded in a campaign.
func CriteriaFor(ev Evaluation) Criteria {
	return Criteria{
		Period:           ev.Period,
		PracticeType:     ev.PracticeType,
		CategoryIDs:      ev.CategoryIDs,
		ProgramIDs:       ev.ProgramIDs,
		ExcludedStatuses: ev.Kind.ExcludedStatuses(),
	}
}

// QueryFilter narrows evaluation listings.
type QueryFilter struct {
	Kind   Kind
	Status Status
	Period int
}

// NewEvaluation is the creation payload.
type NewEvaluation struct {
	Name         string    `json:"name" validate:"required"`
	Period       int       `json:"period" validate:"required"`
	Kind         Kind      `json:"kind" validate:"required,oneof=PRACTICE MONITORING"`
	PracticeType int       `json:"practice_type"`
	CategoryIDs  []int     `json:"category_ids"`
	ProgramIDs   []int     `json:"program_ids"`
	SurveyRef    int        `json:"survey_ref"`
	StartDate    time.Time  `json:"start_date"`
	FinishDate   time.Time  `json:"finish_date" validate:"required"`
	Alert        *AlertSpec `json:"alert"`
	CreatedBy    string     `json:"created_by"`
}

func (ne NewEvaluation) Validate() error {
	if err := core.Validate.Struct(ne); err != nil {
		return core.TranslateError(err)
	}
	if !ne.FinishDate.IsZero() && !ne.StartDate.IsZero() && ne.FinishDate.Before(ne.StartDate) {
		return core.NewValidationError(errors.New("invalid input"),
			core.FieldError{Field: "finish_date", Error: "must not precede start_date"})
	}
	if err := validateAlert(ne.Alert); err != nil {
		return err
	}
	return nil
}

func validateAlert(a *AlertSpec) error {
	if a == nil {
		return nil
	}
	if a.Value <= 0 {
		return core.NewValidationError(errors.New("invalid input"),
			core.FieldError{Field: "alert.value", Error: "must be positive"})
	}
	switch a.Unit {
	case AlertDays, AlertWeeks, AlertMonths:
	default:
		return core.NewValidationError(errors.New("invalid input"),
			core.FieldError{Field: "alert.unit", Error: "unknown unit"})
	}
	switch a.When {
	case AlertAfterStart, AlertBeforeEnd:
	default:
		return core.NewValidationError(errors.New("invalid input"),
			core.FieldError{Field: "alert.when", Error: "unknown anchor"})
	}
	return nil
}

// UpdateEvaluation is the mutation payload; nil fields are left untouched.
// Setting Status to SENT triggers invitation dispatch.
type UpdateEvaluation struct {
	Name       *string    `json:"name"`
	SurveyRef  *int       `json:"survey_ref"`
	StartDate  *time.Time `json:"start_date"`
	FinishDate *time.Time `json:"finish_date"`
	Alert      *AlertSpec `json:"alert"`
	Status     *Status    `json:"status"`
	UpdatedBy  string     `json:"updated_by"`
}

func (ue UpdateEvaluation) Validate() error {
	if err := validateAlert(ue.Alert); err != nil {
		return err
	}
	if ue.Status != nil {
		switch *ue.Status {
		case StatusCreated, StatusSent, StatusFinalized, StatusCancelled:
		default:
			return core.NewValidationError(errors.New("invalid input"),
				core.FieldError{Field: "status", Error: "unknown status"})
		}
	}
	if ue.Name != nil && *ue.Name == "" {
		return core.NewValidationError(errors.New("invalid input"),
			core.FieldError{Field: "name", Error: "must not be blank"})
	}
	return nil
}
