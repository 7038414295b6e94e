package message

import (
	"context"

	"cipher_chat/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type (
	MongoStore struct {
		collection *mongo.Collection
	}

	messageDocument struct {
		ID        primitive.ObjectID `bson:"_id,omitempty"`
		Channel   string             `bson:"channel"`
		MessageID string             `bson:"message_id"`
		Name      string             `bson:"name"`
		Text      string             `bson:"text"`
		Date      string             `bson:"date"`
	}
)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection("messages"),
	}
}

// EnsureIndexes creates the channel index used by List and Count.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "channel", Value: 1}, {Key: "_id", Value: 1}},
	})
	return err
}

func (s *MongoStore) Append(ctx context.Context, channel string, rec model.RawMessage) (int, error) {
	_, err := s.collection.InsertOne(ctx, messageDocument{
		Channel:   channel,
		MessageID: rec.ID,
		Name:      rec.Name,
		Text:      rec.Text,
		Date:      rec.Date,
	})
	if err != nil {
		return 0, err
	}
	return s.Count(ctx, channel)
}

func (s *MongoStore) List(ctx context.Context, channel string) ([]model.RawMessage, error) {
	filter := bson.M{
		"channel": channel,
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	res := make([]model.RawMessage, 0, len(docs))
	for _, d := range docs {
		res = append(res, model.RawMessage{
			ID:   d.MessageID,
			Name: d.Name,
			Text: d.Text,
			Date: d.Date,
		})
	}
	return res, nil
}

func (s *MongoStore) Count(ctx context.Context, channel string) (int, error) {
	n, err := s.collection.CountDocuments(ctx, bson.M{"channel": channel})
	return int(n), err
}
