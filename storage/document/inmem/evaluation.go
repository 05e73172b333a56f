package inmemdoc

import (
	"context"
	"strconv"
	"time"

	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
)

type evaluationRepository struct {
	evaluations *evaluationTable
	tokens      *tokenTable
	responses   *responseTable
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *DB) evaluation.Repository {
	return &evaluationRepository{evaluations: db.evaluations, tokens: db.tokens, responses: db.responses}
}

func (repo *evaluationRepository) CreateEvaluation(_ context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	repo.evaluations.Lock()
	defer repo.evaluations.Unlock()

	repo.evaluations.table[ev.ID] = &ev
	return ev, nil
}

func (repo *evaluationRepository) GetEvaluation(_ context.Context, id string) (evaluation.Evaluation, error) {
	repo.evaluations.RLock()
	defer repo.evaluations.RUnlock()

	ev, ok := repo.evaluations.table[id]
	if !ok {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}
	return *ev, nil
}

func (repo *evaluationRepository) QueryEvaluations(_ context.Context, filter evaluation.QueryFilter) ([]evaluation.Evaluation, error) {
	repo.evaluations.RLock()
	defer repo.evaluations.RUnlock()

	evs := make([]evaluation.Evaluation, 0, len(repo.evaluations.table))
	for _, ev := range repo.evaluations.table {
		if filter.Kind != "" && ev.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && ev.Status != filter.Status {
			continue
		}
		if filter.Period != 0 && ev.Period != filter.Period {
			continue
		}
		evs = append(evs, *ev)
	}
	return evs, nil
}

func (repo *evaluationRepository) UpdateEvaluation(_ context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	repo.evaluations.Lock()
	defer repo.evaluations.Unlock()

	if _, ok := repo.evaluations.table[ev.ID]; !ok {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}
	repo.evaluations.table[ev.ID] = &ev
	return ev, nil
}

func (repo *evaluationRepository) SetParticipants(
	_ context.Context, evalID string,
	participants map[evaluation.Role][]evaluation.ParticipantRef,
	totals map[evaluation.Role]int,
) error {
	repo.evaluations.Lock()
	defer repo.evaluations.Unlock()

	ev, ok := repo.evaluations.table[evalID]
	if !ok {
		return evaluation.ErrNotFound
	}
	ev.Participants = participants
	ev.Totals = totals
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *evaluationRepository) SetPercentages(_ context.Context, evalID string, percentages map[evaluation.Role]int) error {
	repo.evaluations.Lock()
	defer repo.evaluations.Unlock()

	ev, ok := repo.evaluations.table[evalID]
	if !ok {
		return evaluation.ErrNotFound
	}
	ev.Percentages = percentages
	ev.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *evaluationRepository) SetDispatched(
	_ context.Context, evalID string,
	status evaluation.Status, emailStatus evaluation.EmailStatus, at time.Time,
) error {
	repo.evaluations.Lock()
	defer repo.evaluations.Unlock()

	ev, ok := repo.evaluations.table[evalID]
	if !ok {
		return evaluation.ErrNotFound
	}
	ev.Status = status
	ev.EmailStatus = emailStatus
	ev.DateSent = &at
	ev.UpdatedAt = at
	return nil
}

func (repo *evaluationRepository) CreateTokens(_ context.Context, tokens []evaluation.AccessToken) (int, error) {
	repo.tokens.Lock()
	defer repo.tokens.Unlock()

	var inserted int
	for _, t := range tokens {
		t := t
		key := tokenTupleKey{t.EvaluationID, t.LegalizationID, t.Role, t.Variant}
		if _, exists := repo.tokens.byTuple[key]; exists {
			continue
		}
		if _, exists := repo.tokens.bySecret[t.Secret]; exists {
			continue
		}
		repo.tokens.table[t.ID] = &t
		repo.tokens.byTuple[key] = t.ID
		repo.tokens.bySecret[t.Secret] = t.ID
		inserted++
	}
	return inserted, nil
}

func (repo *evaluationRepository) RefreshTokenContacts(_ context.Context, updates []evaluation.TokenContactUpdate) error {
	repo.tokens.Lock()
	defer repo.tokens.Unlock()

	for _, u := range updates {
		t, ok := repo.tokens.table[u.TokenID]
		if !ok || t.Used {
			continue
		}
		t.Email = u.Email
		t.FormCode = u.FormCode
	}
	return nil
}

func (repo *evaluationRepository) GetTokensByRole(_ context.Context, evalID string, role evaluation.Role) ([]evaluation.AccessToken, error) {
	repo.tokens.RLock()
	defer repo.tokens.RUnlock()

	var tokens []evaluation.AccessToken
	for _, t := range repo.tokens.table {
		if t.EvaluationID == evalID && t.Role == role {
			tokens = append(tokens, *t)
		}
	}
	return tokens, nil
}

func (repo *evaluationRepository) GetTokensByEvaluation(_ context.Context, evalID string) ([]evaluation.AccessToken, error) {
	repo.tokens.RLock()
	defer repo.tokens.RUnlock()

	var tokens []evaluation.AccessToken
	for _, t := range repo.tokens.table {
		if t.EvaluationID == evalID {
			tokens = append(tokens, *t)
		}
	}
	return tokens, nil
}

func (repo *evaluationRepository) GetTokenBySecret(_ context.Context, secret string) (evaluation.AccessToken, error) {
	repo.tokens.RLock()
	defer repo.tokens.RUnlock()

	id, ok := repo.tokens.bySecret[secret]
	if !ok {
		return evaluation.AccessToken{}, evaluation.ErrTokenNotFound
	}
	return *repo.tokens.table[id], nil
}

func (repo *evaluationRepository) ConsumeToken(_ context.Context, tokenID string, at time.Time) error {
	repo.tokens.Lock()
	defer repo.tokens.Unlock()

	t, ok := repo.tokens.table[tokenID]
	if !ok {
		return evaluation.ErrTokenNotFound
	}
	if t.Used {
		return evaluation.ErrTokenUsed
	}
	t.Used = true
	t.UsedAt = &at
	return nil
}

func (repo *evaluationRepository) SaveResponseSlot(
	_ context.Context, evalID string, legalizationID int,
	role evaluation.Role, slot evaluation.ResponseSlot,
) error {
	repo.responses.Lock()
	defer repo.responses.Unlock()

	key := responseKey{evalID, legalizationID}
	rec, ok := repo.responses.table[key]
	if !ok {
		now := time.Now().UTC()
		rec = &evaluation.ResponseRecord{
			ID:             evalID + ":" + strconv.Itoa(legalizationID),
			EvaluationID:   evalID,
			LegalizationID: legalizationID,
			Slots:          make(map[evaluation.Role]evaluation.ResponseSlot),
			CreatedAt:      now,
		}
		repo.responses.table[key] = rec
	}
	rec.Slots[role] = slot
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *evaluationRepository) GetResponses(_ context.Context, evalID string) ([]evaluation.ResponseRecord, error) {
	repo.responses.RLock()
	defer repo.responses.RUnlock()

	var recs []evaluation.ResponseRecord
	for _, rec := range repo.responses.table {
		if rec.EvaluationID == evalID {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

func (repo *evaluationRepository) CountCompleted(_ context.Context, evalID string, role evaluation.Role) (int, error) {
	repo.responses.RLock()
	defer repo.responses.RUnlock()

	var count int
	for _, rec := range repo.responses.table {
		if rec.EvaluationID != evalID {
			continue
		}
		if slot, ok := rec.Slots[role]; ok && slot.Status == evaluation.SlotCompleted {
			count++
		}
	}
	return count, nil
}
