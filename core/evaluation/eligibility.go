package evaluation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

// RefreshReport summarizes one eligibility run.
type RefreshReport struct {
	Totals          map[Role]int `json:"totals"`
	TokensMinted    int          `json:"tokens_minted"`
	IssuanceSkipped bool         `json:"issuance_skipped"`
}

// RefreshEligibility re-derives the participant population from the academic
// records, replaces the campaign's snapshot and ensures every slot has a
// token. The population replacement always runs; issuance is skipped as a
// whole when no survey definition can be resolved, so no link is ever mailed
// to a dead form.
func (svc *Service) RefreshEligibility(ctx context.Context, id string) (RefreshReport, error) {
	ev, err := svc.repo.GetEvaluation(ctx, id)
	if err != nil {
		return RefreshReport{}, err
	}

	criteria := CriteriaFor(ev)
	participants := make(map[Role][]ParticipantRef)
	totals := make(map[Role]int)
	for _, role := range ev.Kind.Roles() {
		parts, err := svc.academic.QueryParticipants(ctx, ev.Kind, role, criteria)
		if err != nil {
			return RefreshReport{}, errors.Wrapf(err, "resolving %s participants", role)
		}
		participants[role] = parts
		totals[role] = len(parts)
	}

	if err := svc.repo.SetParticipants(ctx, ev.ID, participants, totals); err != nil {
		return RefreshReport{}, errors.Wrap(err, "storing participant snapshot")
	}
	if ev.SourceID != 0 {
		if err := svc.academic.UpdateTotals(ctx, ev.SourceID, totals); err != nil {
			svc.log.Error("mirroring totals to relational store", "evaluation", ev.ID, "err", err)
		}
	}

	report := RefreshReport{Totals: totals}

	def, err := svc.resolveSurvey(ctx, ev)
	if err != nil {
		if errors.Cause(err) != survey.ErrNotFound {
			return report, errors.Wrap(err, "resolving survey")
		}
		svc.log.Warn("survey unresolved, token issuance skipped", "evaluation", ev.ID)
		report.IssuanceSkipped = true
		return report, nil
	}

	for _, role := range ev.Kind.Roles() {
		code := ev.FormCodes[role]
		if code == 0 || len(participants[role]) == 0 {
			continue
		}
		if len(questionsFor(def, ev.Kind, role, code)) == 0 {
			svc.log.Warn("form code not carried by resolved survey, role skipped",
				"evaluation", ev.ID, "role", role, "form_code", code)
			continue
		}
		minted, err := svc.ensureTokens(ctx, ev, role, participants[role], code)
		if err != nil {
			svc.log.Error("token issuance failed for role", "evaluation", ev.ID, "role", role, "err", err)
			continue
		}
		report.TokensMinted += minted
	}
	return report, nil
}
