package mongodb

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JoinupRosario/evaluacionesUAOback/core"
)

const (
	evaluationsCollection = "evaluations"
	tokensCollection      = "access_tokens"
	responsesCollection   = "responses"
	surveysCollection     = "surveys"

	connectTimeout = 10 * time.Second
)

// Open connects to the document store configured in conf and verifies the
// connection with a ping.
func Open(conf core.DocStoreConfig) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to document store")
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "pinging document store")
	}
	return client.Database(conf.Name), nil
}

// EnsureIndexes installs the indexes the repositories rely on. The unique
// token tuple index is load-bearing: it is what collapses concurrent
// eligibility runs to one token per slot.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(tokensCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "evaluation_id", Value: 1},
				{Key: "legalization_id", Value: 1},
				{Key: "role", Value: 1},
				{Key: "variant", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "secret", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return errors.Wrap(err, "creating token indexes")
	}

	_, err = db.Collection(responsesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "evaluation_id", Value: 1},
			{Key: "legalization_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "creating response index")
	}

	_, err = db.Collection(surveysCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "source_item_id", Value: 1}},
	})
	return errors.Wrap(err, "creating survey index")
}
