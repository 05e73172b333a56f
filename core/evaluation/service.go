package evaluation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

var (
	ErrNotFound         = errors.New("evaluation not found")
	ErrTokenNotFound    = errors.New("access token not found")
	ErrTokenUsed        = errors.New("access token already used")
	ErrTokenExpired     = errors.New("access token expired")
	ErrEvaluationClosed = errors.New("evaluation closed")
	ErrNothingToSend    = errors.New("no invitations to send")
	ErrAllSendsFailed   = errors.New("all invitation sends failed")

	_ Servicer = (*Service)(nil)
)

// SurveyResolver is the slice of the survey service the campaign workflow
// needs to locate question sets.
type SurveyResolver interface {
	GetBySourceItem(ctx context.Context, itemID int) (survey.Definition, error)
	FindByFormCode(ctx context.Context, code int) (survey.Definition, error)
}

type Servicer interface {
	Create(ctx context.Context, ne NewEvaluation) (Evaluation, error)
	Update(ctx context.Context, id string, ue UpdateEvaluation) (Evaluation, error)
	Get(ctx context.Context, id string) (Evaluation, error)
	Query(ctx context.Context, filter QueryFilter) ([]Evaluation, error)
	RefreshEligibility(ctx context.Context, id string) (RefreshReport, error)
	RecountParticipation(ctx context.Context, id string) (map[Role]int, error)
	SendInvitations(ctx context.Context, id string) (SendReport, error)
	ResolveForm(ctx context.Context, secret string) (FormView, error)
	Submit(ctx context.Context, secret string, rawAnswers []byte) (SubmitResult, error)
}

type Service struct {
	repo     Repository
	academic AcademicRepository
	surveys  SurveyResolver
	mailSvc  core.EmailService
	log      core.Logger

	frontendBaseURL string
	tokenTTL        time.Duration
	now             func() time.Time
}

func NewService(
	repo Repository,
	academic AcademicRepository,
	surveys SurveyResolver,
	mailSvc core.EmailService,
	log core.Logger,
) *Service {
	return &Service{
		repo:            repo,
		academic:        academic,
		surveys:         surveys,
		mailSvc:         mailSvc,
		log:             log,
		frontendBaseURL: core.Conf.FrontendBaseURL,
		tokenTTL:        core.Conf.TokenExpiration,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a campaign, mirrors it into the relational store for
// reporting, then runs the first eligibility pass. Eligibility failures do
// not fail creation; the campaign can be refreshed later.
func (svc *Service) Create(ctx context.Context, ne NewEvaluation) (Evaluation, error) {
	if err := ne.Validate(); err != nil {
		return Evaluation{}, err
	}
	now := svc.now()
	ev := Evaluation{
		ID:           uuid.NewString(),
		Name:         ne.Name,
		Period:       ne.Period,
		Kind:         ne.Kind,
		PracticeType: ne.PracticeType,
		CategoryIDs:  ne.CategoryIDs,
		ProgramIDs:   ne.ProgramIDs,
		SurveyRef:    ne.SurveyRef,
		StartDate:    ne.StartDate,
		FinishDate:   ne.FinishDate,
		Alert:        ne.Alert,
		Status:       StatusCreated,
		EmailStatus:  EmailNotSent,
		CreatedBy:    ne.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ev.StartDate.IsZero() {
		ev.StartDate = now
	}
	if ev.SurveyRef != 0 {
		codes, err := svc.resolveFormCodes(ctx, ev.SurveyRef, ev.Kind)
		if err != nil {
			svc.log.Warn("form codes unresolved at creation", "survey_ref", ev.SurveyRef, "err", err)
		} else {
			ev.FormCodes = codes
		}
	}

	if sourceID, err := svc.academic.CreateEvaluationRow(ctx, ev); err != nil {
		svc.log.Error("mirroring evaluation to relational store", "err", err)
	} else {
		ev.SourceID = sourceID
	}

	ev, err := svc.repo.CreateEvaluation(ctx, ev)
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "creating evaluation")
	}

	if _, err := svc.RefreshEligibility(ctx, ev.ID); err != nil {
		svc.log.Error("initial eligibility run failed", "evaluation", ev.ID, "err", err)
	}
	return svc.repo.GetEvaluation(ctx, ev.ID)
}

// Update applies the mutable fields. A transition into SENT dispatches the
// invitation emails first and only records SENT if at least one send landed.
func (svc *Service) Update(ctx context.Context, id string, ue UpdateEvaluation) (Evaluation, error) {
	if err := ue.Validate(); err != nil {
		return Evaluation{}, err
	}
	ev, err := svc.repo.GetEvaluation(ctx, id)
	if err != nil {
		return Evaluation{}, err
	}

	if ue.Name != nil {
		ev.Name = *ue.Name
	}
	if ue.StartDate != nil {
		ev.StartDate = *ue.StartDate
	}
	if ue.FinishDate != nil {
		ev.FinishDate = *ue.FinishDate
	}
	if ue.Alert != nil {
		ev.Alert = ue.Alert
	}
	if ue.UpdatedBy != "" {
		ev.UpdatedBy = ue.UpdatedBy
	}
	refreshNeeded := false
	if ue.SurveyRef != nil && *ue.SurveyRef != ev.SurveyRef {
		ev.SurveyRef = *ue.SurveyRef
		codes, err := svc.resolveFormCodes(ctx, ev.SurveyRef, ev.Kind)
		if err != nil {
			return Evaluation{}, errors.Wrap(err, "resolving form codes")
		}
		ev.FormCodes = codes
		refreshNeeded = true
	}

	wantsSent := ue.Status != nil && *ue.Status == StatusSent && ev.Status != StatusSent
	if ue.Status != nil && !wantsSent {
		ev.Status = *ue.Status
	}
	ev.UpdatedAt = svc.now()

	ev, err = svc.repo.UpdateEvaluation(ctx, ev)
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "updating evaluation")
	}

	if refreshNeeded {
		if _, err := svc.RefreshEligibility(ctx, ev.ID); err != nil {
			svc.log.Error("eligibility refresh after update failed", "evaluation", ev.ID, "err", err)
		}
	}
	if wantsSent {
		if _, err := svc.SendInvitations(ctx, ev.ID); err != nil {
			return Evaluation{}, err
		}
	}
	return svc.repo.GetEvaluation(ctx, ev.ID)
}

func (svc *Service) Get(ctx context.Context, id string) (Evaluation, error) {
	return svc.repo.GetEvaluation(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Evaluation, error) {
	return svc.repo.QueryEvaluations(ctx, filter)
}

// resolveFormCodes reads a survey item's value_for_reports and decodes the
// per-role form codes.
func (svc *Service) resolveFormCodes(ctx context.Context, itemID int, kind Kind) (map[Role]int, error) {
	spec, err := svc.academic.GetFormCodeSpec(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return ParseFormCodes(spec, kind), nil
}

// resolveSurvey finds the definition a campaign draws questions from: the
// explicit survey reference first, then a lookup by any of the campaign's
// form codes. An unresolved survey must stop token issuance; tokens minted
// without a reachable question set would burn on first open.
func (svc *Service) resolveSurvey(ctx context.Context, ev Evaluation) (survey.Definition, error) {
	if ev.SurveyRef != 0 {
		def, err := svc.surveys.GetBySourceItem(ctx, ev.SurveyRef)
		if err == nil {
			return def, nil
		}
		if errors.Cause(err) != survey.ErrNotFound {
			return survey.Definition{}, err
		}
	}
	for _, role := range ev.Kind.Roles() {
		code := ev.FormCodes[role]
		if code == 0 {
			continue
		}
		def, err := svc.surveys.FindByFormCode(ctx, code)
		if err == nil {
			return def, nil
		}
		if errors.Cause(err) != survey.ErrNotFound {
			return survey.Definition{}, err
		}
	}
	return survey.Definition{}, survey.ErrNotFound
}

// questionsFor resolves the question set a role answers, empty when the
// resolved form does not carry the role's form code.
func questionsFor(def survey.Definition, kind Kind, role Role, formCode int) []survey.Question {
	key, ok := FormKeyFor(kind, role)
	if !ok {
		return nil
	}
	return def.Questions(key, formCode)
}
