package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/JoinupRosario/evaluacionesUAOback/core/survey"
)

type surveyRepository struct {
	surveys *mongo.Collection
}

var _ survey.Repository = (*surveyRepository)(nil) // interface compliance check

func NewSurveyRepository(db *mongo.Database) survey.Repository {
	return &surveyRepository{surveys: db.Collection(surveysCollection)}
}

func (repo *surveyRepository) CreateDefinition(ctx context.Context, d survey.Definition) (survey.Definition, error) {
	if _, err := repo.surveys.InsertOne(ctx, d); err != nil {
		return survey.Definition{}, errors.Wrap(err, "inserting survey")
	}
	return d, nil
}

func (repo *surveyRepository) UpdateDefinition(ctx context.Context, d survey.Definition) (survey.Definition, error) {
	res, err := repo.surveys.ReplaceOne(ctx, bson.M{"_id": d.ID}, d)
	if err != nil {
		return survey.Definition{}, errors.Wrap(err, "updating survey")
	}
	if res.MatchedCount == 0 {
		return survey.Definition{}, survey.ErrNotFound
	}
	return d, nil
}

func (repo *surveyRepository) GetDefinition(ctx context.Context, id string) (survey.Definition, error) {
	return repo.findOne(ctx, bson.M{"_id": id})
}

func (repo *surveyRepository) GetDefinitionBySourceItem(ctx context.Context, itemID int) (survey.Definition, error) {
	return repo.findOne(ctx, bson.M{"source_item_id": itemID})
}

func (repo *surveyRepository) FindDefinitionByFormCode(ctx context.Context, code int) (survey.Definition, error) {
	// Forms is a map keyed by audience; match the code in any slot.
	// Archived definitions no longer resolve.
	return repo.findOne(ctx, bson.M{
		"status": bson.M{"$ne": survey.StatusArchived},
		"$or": bson.A{
			bson.M{"forms.student.code": code},
			bson.M{"forms.tutor.code": code},
			bson.M{"forms.monitor.code": code},
		},
	})
}

func (repo *surveyRepository) QueryDefinitions(ctx context.Context) ([]survey.Definition, error) {
	cur, err := repo.surveys.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "querying surveys")
	}
	var defs []survey.Definition
	if err = cur.All(ctx, &defs); err != nil {
		return nil, errors.Wrap(err, "decoding surveys")
	}
	return defs, nil
}

func (repo *surveyRepository) findOne(ctx context.Context, filter bson.M) (survey.Definition, error) {
	var d survey.Definition
	err := repo.surveys.FindOne(ctx, filter).Decode(&d)
	if err == mongo.ErrNoDocuments {
		return survey.Definition{}, survey.ErrNotFound
	}
	if err != nil {
		return survey.Definition{}, errors.Wrap(err, "fetching survey")
	}
	return d, nil
}
