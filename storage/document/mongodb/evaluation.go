package mongodb

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JoinupRosario/evaluacionesUAOback/core/evaluation"
)

type evaluationRepository struct {
	evaluations *mongo.Collection
	tokens      *mongo.Collection
	responses   *mongo.Collection
}

var _ evaluation.Repository = (*evaluationRepository)(nil) // interface compliance check

func NewEvaluationRepository(db *mongo.Database) evaluation.Repository {
	return &evaluationRepository{
		evaluations: db.Collection(evaluationsCollection),
		tokens:      db.Collection(tokensCollection),
		responses:   db.Collection(responsesCollection),
	}
}

func (repo *evaluationRepository) CreateEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	if _, err := repo.evaluations.InsertOne(ctx, ev); err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "inserting evaluation")
	}
	return ev, nil
}

func (repo *evaluationRepository) GetEvaluation(ctx context.Context, id string) (evaluation.Evaluation, error) {
	var ev evaluation.Evaluation
	err := repo.evaluations.FindOne(ctx, bson.M{"_id": id}).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "fetching evaluation")
	}
	return ev, nil
}

func (repo *evaluationRepository) QueryEvaluations(ctx context.Context, filter evaluation.QueryFilter) ([]evaluation.Evaluation, error) {
	query := bson.M{}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Period != 0 {
		query["period"] = filter.Period
	}
	cur, err := repo.evaluations.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying evaluations")
	}
	var evs []evaluation.Evaluation
	if err = cur.All(ctx, &evs); err != nil {
		return nil, errors.Wrap(err, "decoding evaluations")
	}
	return evs, nil
}

func (repo *evaluationRepository) UpdateEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	res, err := repo.evaluations.ReplaceOne(ctx, bson.M{"_id": ev.ID}, ev)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "updating evaluation")
	}
	if res.MatchedCount == 0 {
		return evaluation.Evaluation{}, evaluation.ErrNotFound
	}
	return ev, nil
}

func (repo *evaluationRepository) SetParticipants(
	ctx context.Context, evalID string,
	participants map[evaluation.Role][]evaluation.ParticipantRef,
	totals map[evaluation.Role]int,
) error {
	res, err := repo.evaluations.UpdateOne(ctx, bson.M{"_id": evalID}, bson.M{"$set": bson.M{
		"participants": participants,
		"totals":       totals,
		"updated_at":   time.Now().UTC(),
	}})
	if err != nil {
		return errors.Wrap(err, "storing participants")
	}
	if res.MatchedCount == 0 {
		return evaluation.ErrNotFound
	}
	return nil
}

func (repo *evaluationRepository) SetPercentages(ctx context.Context, evalID string, percentages map[evaluation.Role]int) error {
	res, err := repo.evaluations.UpdateOne(ctx, bson.M{"_id": evalID}, bson.M{"$set": bson.M{
		"percentages": percentages,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return errors.Wrap(err, "storing percentages")
	}
	if res.MatchedCount == 0 {
		return evaluation.ErrNotFound
	}
	return nil
}

func (repo *evaluationRepository) SetDispatched(
	ctx context.Context, evalID string,
	status evaluation.Status, emailStatus evaluation.EmailStatus, at time.Time,
) error {
	res, err := repo.evaluations.UpdateOne(ctx, bson.M{"_id": evalID}, bson.M{"$set": bson.M{
		"status":       status,
		"email_status": emailStatus,
		"date_sent":    at,
		"updated_at":   at,
	}})
	if err != nil {
		return errors.Wrap(err, "recording dispatch")
	}
	if res.MatchedCount == 0 {
		return evaluation.ErrNotFound
	}
	return nil
}

// CreateTokens bulk-inserts unordered so one duplicate does not abort the
// batch; duplicate-key rejections are the unique tuple index doing its job
// under concurrent eligibility runs.
func (repo *evaluationRepository) CreateTokens(ctx context.Context, tokens []evaluation.AccessToken) (int, error) {
	docs := make([]interface{}, len(tokens))
	for i, t := range tokens {
		docs[i] = t
	}
	res, err := repo.tokens.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, errors.Wrap(err, "inserting tokens")
	}
	if res == nil {
		return 0, nil
	}
	return len(res.InsertedIDs), nil
}

func (repo *evaluationRepository) RefreshTokenContacts(ctx context.Context, updates []evaluation.TokenContactUpdate) error {
	models := make([]mongo.WriteModel, len(updates))
	for i, u := range updates {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": u.TokenID, "used": false}).
			SetUpdate(bson.M{"$set": bson.M{"email": u.Email, "form_code": u.FormCode}})
	}
	_, err := repo.tokens.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return errors.Wrap(err, "refreshing token contacts")
}

func (repo *evaluationRepository) GetTokensByRole(ctx context.Context, evalID string, role evaluation.Role) ([]evaluation.AccessToken, error) {
	cur, err := repo.tokens.Find(ctx, bson.M{"evaluation_id": evalID, "role": role})
	if err != nil {
		return nil, errors.Wrap(err, "querying tokens")
	}
	var tokens []evaluation.AccessToken
	if err = cur.All(ctx, &tokens); err != nil {
		return nil, errors.Wrap(err, "decoding tokens")
	}
	return tokens, nil
}

func (repo *evaluationRepository) GetTokensByEvaluation(ctx context.Context, evalID string) ([]evaluation.AccessToken, error) {
	cur, err := repo.tokens.Find(ctx, bson.M{"evaluation_id": evalID})
	if err != nil {
		return nil, errors.Wrap(err, "querying tokens")
	}
	var tokens []evaluation.AccessToken
	if err = cur.All(ctx, &tokens); err != nil {
		return nil, errors.Wrap(err, "decoding tokens")
	}
	return tokens, nil
}

func (repo *evaluationRepository) GetTokenBySecret(ctx context.Context, secret string) (evaluation.AccessToken, error) {
	var t evaluation.AccessToken
	err := repo.tokens.FindOne(ctx, bson.M{"secret": secret}).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return evaluation.AccessToken{}, evaluation.ErrTokenNotFound
	}
	if err != nil {
		return evaluation.AccessToken{}, errors.Wrap(err, "fetching token")
	}
	return t, nil
}

// ConsumeToken flips used in one conditional update; losing the race to
// another submission surfaces as ErrTokenUsed.
func (repo *evaluationRepository) ConsumeToken(ctx context.Context, tokenID string, at time.Time) error {
	err := repo.tokens.FindOneAndUpdate(ctx,
		bson.M{"_id": tokenID, "used": false},
		bson.M{"$set": bson.M{"used": true, "used_at": at}},
	).Err()
	if err == mongo.ErrNoDocuments {
		// Either consumed already or gone; look once to tell the two apart.
		if cnt, cntErr := repo.tokens.CountDocuments(ctx, bson.M{"_id": tokenID}); cntErr == nil && cnt > 0 {
			return evaluation.ErrTokenUsed
		}
		return evaluation.ErrTokenNotFound
	}
	return errors.Wrap(err, "consuming token")
}

func (repo *evaluationRepository) SaveResponseSlot(
	ctx context.Context, evalID string, legalizationID int,
	role evaluation.Role, slot evaluation.ResponseSlot,
) error {
	now := time.Now().UTC()
	_, err := repo.responses.UpdateOne(ctx,
		bson.M{"evaluation_id": evalID, "legalization_id": legalizationID},
		bson.M{
			"$set": bson.M{"slots." + string(role): slot, "updated_at": now},
			"$setOnInsert": bson.M{
				"_id":        evalID + ":" + strconv.Itoa(legalizationID),
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	return errors.Wrap(err, "storing response slot")
}

func (repo *evaluationRepository) GetResponses(ctx context.Context, evalID string) ([]evaluation.ResponseRecord, error) {
	cur, err := repo.responses.Find(ctx, bson.M{"evaluation_id": evalID})
	if err != nil {
		return nil, errors.Wrap(err, "querying responses")
	}
	var recs []evaluation.ResponseRecord
	if err = cur.All(ctx, &recs); err != nil {
		return nil, errors.Wrap(err, "decoding responses")
	}
	return recs, nil
}

func (repo *evaluationRepository) CountCompleted(ctx context.Context, evalID string, role evaluation.Role) (int, error) {
	cnt, err := repo.responses.CountDocuments(ctx, bson.M{
		"evaluation_id":        evalID,
		"slots." + string(role) + ".status": evaluation.SlotCompleted,
	})
	if err != nil {
		return 0, errors.Wrap(err, "counting responses")
	}
	return int(cnt), nil
}
