package repository

import (
	"context"
	"time"

	"fruition-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// feedDocument is the stored shape of a public feed event.
type feedDocument struct {
	ID          string    `bson:"_id"`
	Type        string    `bson:"type"`
	FruitName   string    `bson:"fruit_name"`
	Amount      int       `bson:"amount"`
	MemberLabel string    `bson:"member_label"`
	Location    string    `bson:"location,omitempty"`
	Icon        string    `bson:"icon"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toFeedDocument(e model.FeedEvent) feedDocument {
	return feedDocument{
		ID:          e.ID,
		Type:        e.Type,
		FruitName:   e.FruitName,
		Amount:      e.Amount,
		MemberLabel: e.MemberLabel,
		Location:    e.Location,
		Icon:        e.Icon,
		CreatedAt:   e.Timestamp.UTC(),
	}
}

func (d feedDocument) event() model.FeedEvent {
	return model.FeedEvent{
		ID:          d.ID,
		Type:        d.Type,
		FruitName:   d.FruitName,
		Amount:      d.Amount,
		MemberLabel: d.MemberLabel,
		Location:    d.Location,
		Icon:        d.Icon,
		Timestamp:   d.CreatedAt,
	}
}

// MongoDBFeedRepository implements FeedRepository for MongoDB
type MongoDBFeedRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBFeedRepository connects to MongoDB and returns a feed repository
func NewMongoDBFeedRepository(uri, dbName, collectionName string) (*MongoDBFeedRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	collection := client.Database(dbName).Collection(collectionName)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &MongoDBFeedRepository{
		client:     client,
		collection: collection,
	}, nil
}

// InsertFeedEvents inserts a batch of feed events
func (r *MongoDBFeedRepository) InsertFeedEvents(ctx context.Context, events []model.FeedEvent) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(events))
	for _, e := range events {
		docs = append(docs, toFeedDocument(e))
	}
	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// RecentFeedEvents returns the latest events, newest first
func (r *MongoDBFeedRepository) RecentFeedEvents(ctx context.Context, limit int) ([]model.FeedEvent, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})
	findOptions.SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []feedDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]model.FeedEvent, 0, len(docs))
	for _, d := range docs {
		events = append(events, d.event())
	}
	return events, nil
}

// Close closes the MongoDB connection
func (r *MongoDBFeedRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var _ FeedRepository = (*MongoDBFeedRepository)(nil)
