package evaluation

import (
	"context"
	"time"
)

// Repository is the document-store persistence surface for campaigns, tokens
// and response records. Implementations must enforce a unique index on the
// token tuple (evaluation_id, legalization_id, role, variant) and on secret,
// and CreateTokens must tolerate duplicate-key rejections so concurrent
// eligibility runs converge on one token per slot.
type Repository interface {
	CreateEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (Evaluation, error)
	QueryEvaluations(ctx context.Context, filter QueryFilter) ([]Evaluation, error)
	UpdateEvaluation(ctx context.Context, ev Evaluation) (Evaluation, error)
	SetParticipants(ctx context.Context, evalID string, participants map[Role][]ParticipantRef, totals map[Role]int) error
	SetPercentages(ctx context.Context, evalID string, percentages map[Role]int) error
	SetDispatched(ctx context.Context, evalID string, status Status, emailStatus EmailStatus, at time.Time) error

	// CreateTokens bulk-inserts, skipping tuples that already exist; it
	// reports how many were actually inserted.
	CreateTokens(ctx context.Context, tokens []AccessToken) (int, error)
	RefreshTokenContacts(ctx context.Context, updates []TokenContactUpdate) error
	GetTokensByRole(ctx context.Context, evalID string, role Role) ([]AccessToken, error)
	GetTokensByEvaluation(ctx context.Context, evalID string) ([]AccessToken, error)
	GetTokenBySecret(ctx context.Context, secret string) (AccessToken, error)
	// ConsumeToken flips used to true only if it is still false, in a single
	// atomic step; a token already consumed yields ErrTokenUsed.
	ConsumeToken(ctx context.Context, tokenID string, at time.Time) error

	SaveResponseSlot(ctx context.Context, evalID string, legalizationID int, role Role, slot ResponseSlot) error
	GetResponses(ctx context.Context, evalID string) ([]ResponseRecord, error)
	CountCompleted(ctx context.Context, evalID string, role Role) (int, error)
}

// TokenContactUpdate refreshes the mutable contact fields of an unused token.
type TokenContactUpdate struct {
	TokenID  string
	Email    string
	FormCode int
}

// AcademicRepository reads eligibility and display data from the relational
// academic records store, and writes campaign aggregates back to it for
// reporting. The relational rows are owned by the wider academic system;
// this surface never mutates enrollment data.
type AcademicRepository interface {
	QueryParticipants(ctx context.Context, kind Kind, role Role, c Criteria) ([]ParticipantRef, error)
	GetParticipantNames(ctx context.Context, kind Kind, legalizationIDs []int) (map[int]ParticipantNames, error)
	// GetFormCodeSpec returns the raw value_for_reports of a survey item.
	GetFormCodeSpec(ctx context.Context, itemID int) (string, error)

	CreateEvaluationRow(ctx context.Context, ev Evaluation) (int, error)
	UpdateTotals(ctx context.Context, sourceID int, totals map[Role]int) error
	UpdatePercentages(ctx context.Context, sourceID int, percentages map[Role]int) error
	UpdateStatus(ctx context.Context, sourceID int, status Status, emailStatus EmailStatus) error
}
