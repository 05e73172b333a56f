package evaluation

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

// RecountParticipation recomputes, per role, the percentage of the eligible
// population that has submitted: round(completed/total*100), 0 when the
// population is empty. The result is written to the document store and
// mirrored to the relational row when one exists.
func (svc *Service) RecountParticipation(ctx context.Context, id string) (map[Role]int, error) {
	ev, err := svc.repo.GetEvaluation(ctx, id)
	if err != nil {
		return nil, err
	}

	percentages := make(map[Role]int, 3)
	for _, role := range ev.Kind.Roles() {
		total := ev.Totals[role]
		if total == 0 {
			percentages[role] = 0
			continue
		}
		completed, err := svc.repo.CountCompleted(ctx, ev.ID, role)
		if err != nil {
			return nil, errors.Wrapf(err, "counting %s submissions", role)
		}
		percentages[role] = int(math.Round(float64(completed) / float64(total) * 100))
	}

	if err := svc.repo.SetPercentages(ctx, ev.ID, percentages); err != nil {
		return nil, errors.Wrap(err, "storing percentages")
	}
	if ev.SourceID != 0 {
		if err := svc.academic.UpdatePercentages(ctx, ev.SourceID, percentages); err != nil {
			svc.log.Error("mirroring percentages to relational store", "evaluation", ev.ID, "err", err)
		}
	}
	return percentages, nil
}
