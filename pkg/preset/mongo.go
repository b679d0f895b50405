package preset

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// MongoConfig configures a MongoStore.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string

	// ConnectTimeout bounds server selection. Default 5s.
	ConnectTimeout time.Duration
}

// MongoStore keeps presets in a MongoDB collection with a unique index on
// the name.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB, verifies the connection and ensures
// the name index exists.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "fractalglass"
	}
	if cfg.Collection == "" {
		cfg.Collection = "presets"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetConnectTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping %s: %w", cfg.URI, err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) List(ctx context.Context) ([]Preset, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	var out []Preset
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	for i := range out {
		out[i].Settings = out[i].Settings.Clamp()
	}
	return out, nil
}

func (s *MongoStore) Get(ctx context.Context, name string) (Preset, error) {
	var p Preset
	err := s.coll.FindOne(ctx, bson.M{"name": name}).Decode(&p)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return Preset{}, notFound(name)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("get preset: %w", err)
	}
	p.Settings = p.Settings.Clamp()
	return p, nil
}

// Save upserts by name. The ID and creation time are only written when the
// document is inserted.
func (s *MongoStore) Save(ctx context.Context, name string, st settings.Settings) (Preset, error) {
	st, err := prepare(name, st)
	if err != nil {
		return Preset{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set":         bson.M{"settings": st, "updated_at": now},
		"$setOnInsert": bson.M{"_id": uuid.NewString(), "created_at": now},
	}
	if _, err := s.coll.UpdateOne(ctx, bson.M{"name": name}, update, options.Update().SetUpsert(true)); err != nil {
		return Preset{}, errors.Wrap(errors.ErrCodeInternal, err, "save preset %q", name)
	}
	return s.Get(ctx, name)
}

func (s *MongoStore) Delete(ctx context.Context, name string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound(name)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
