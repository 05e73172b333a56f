package evaluation

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

// FormView is what a respondent sees when opening their link: the campaign
// header plus the question set their token resolves to.
type FormView struct {
	EvaluationID   string            `json:"evaluation_id"`
	EvaluationName string            `json:"evaluation_name"`
	Kind           Kind              `json:"kind"`
	Role           Role              `json:"role"`
	LegalizationID int               `json:"legalization_id"`
	FormCode       int               `json:"form_code"`
	FinishDate     time.Time         `json:"finish_date"`
	Questions      []survey.Question `json:"questions"`
}

// SubmitResult identifies the slot a successful submission filled.
type SubmitResult struct {
	EvaluationID   string `json:"evaluation_id"`
	LegalizationID int    `json:"legalization_id"`
	Role           Role   `json:"role"`
}

// checkToken runs the shared validity gates in order: existence, single-use,
// expiry, then campaign openness.
func (svc *Service) checkToken(ctx context.Context, secret string) (AccessToken, Evaluation, error) {
	t, err := svc.repo.GetTokenBySecret(ctx, secret)
	if err != nil {
		return AccessToken{}, Evaluation{}, err
	}
	if t.Used {
		return AccessToken{}, Evaluation{}, ErrTokenUsed
	}
	if t.Expired(svc.now()) {
		return AccessToken{}, Evaluation{}, ErrTokenExpired
	}
	ev, err := svc.repo.GetEvaluation(ctx, t.EvaluationID)
	if err != nil {
		return AccessToken{}, Evaluation{}, err
	}
	if !ev.IsOpen(svc.now()) {
		return AccessToken{}, Evaluation{}, ErrEvaluationClosed
	}
	return t, ev, nil
}

// ResolveForm validates a respond link and returns the form behind it
// without consuming the token; opening a link any number of times is free.
func (svc *Service) ResolveForm(ctx context.Context, secret string) (FormView, error) {
	t, ev, err := svc.checkToken(ctx, secret)
	if err != nil {
		return FormView{}, err
	}
	def, err := svc.resolveSurvey(ctx, ev)
	if err != nil {
		return FormView{}, errors.Wrap(err, "resolving survey")
	}
	return FormView{
		EvaluationID:   ev.ID,
		EvaluationName: ev.Name,
		Kind:           ev.Kind,
		Role:           t.Role,
		LegalizationID: t.LegalizationID,
		FormCode:       t.FormCode,
		FinishDate:     ev.FinishDate,
		Questions:      questionsFor(def, ev.Kind, t.Role, t.FormCode),
	}, nil
}

// Submit records a respondent's answers. The conditional token consumption
// is the single atomic admission gate and runs before the slot write, so a
// token can never stay spendable once any answer data landed; concurrent
// submissions on the same secret yield exactly one winner.
func (svc *Service) Submit(ctx context.Context, secret string, rawAnswers []byte) (SubmitResult, error) {
	t, ev, err := svc.checkToken(ctx, secret)
	if err != nil {
		return SubmitResult{}, err
	}

	answers, err := ParseAnswers(rawAnswers)
	if err != nil {
		return SubmitResult{}, core.NewValidationError(err)
	}
	if len(answers) == 0 {
		return SubmitResult{}, core.NewValidationError(errors.New("invalid input"),
			core.FieldError{Field: "answers", Error: "at least one answer is required"})
	}

	now := svc.now()
	if err := svc.repo.ConsumeToken(ctx, t.ID, now); err != nil {
		return SubmitResult{}, err
	}

	slot := ResponseSlot{Answers: answers, FormCode: t.FormCode, Status: SlotCompleted, AnsweredAt: now}
	if err := svc.repo.SaveResponseSlot(ctx, ev.ID, t.LegalizationID, t.Role, slot); err != nil {
		// The token is already burned; surfacing the failure beats leaving a
		// spendable token next to stored answers.
		return SubmitResult{}, errors.Wrap(err, "storing response slot")
	}

	go svc.recountAsync(ev.ID)

	return SubmitResult{EvaluationID: ev.ID, LegalizationID: t.LegalizationID, Role: t.Role}, nil
}

// recountAsync refreshes participation percentages after a submission;
// aggregate updates are advisory and never fail a submit.
func (svc *Service) recountAsync(evalID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := svc.RecountParticipation(ctx, evalID); err != nil {
		svc.log.Error("participation recount failed", "evaluation", evalID, "err", err)
	}
}
