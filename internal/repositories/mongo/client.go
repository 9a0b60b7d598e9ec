package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"cvone/interview/internal/repositories"
)

const (
	poolCollection    = "question_pools"
	sessionCollection = "interview_sessions"
)

// Store is the MongoDB-backed repositories.Store
type Store struct {
	client   *mongo.Client
	db       *mongo.Database
	pools    *PoolRepo
	sessions *SessionRepo
}

// Connect dials uri and selects dbName
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	if uri == "" {
		return nil, errors.New("MONGO_URI is empty")
	}
	if dbName == "" {
		dbName = "cvone"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx, readpref.Primary()); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, err
	}
	return NewStore(c, c.Database(dbName)), nil
}

// NewStore wraps an existing database handle
func NewStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:   client,
		db:       db,
		pools:    NewPoolRepo(db),
		sessions: NewSessionRepo(db),
	}
}

func (s *Store) Pools() repositories.PoolRepository       { return s.pools }
func (s *Store) Sessions() repositories.SessionRepository { return s.sessions }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique pool key index the get-or-create path
// relies on, plus the session lookup indexes
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.db.Collection(poolCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "poolKey", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_pool_key"),
	}); err != nil {
		return err
	}
	_, err := s.db.Collection(sessionCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_recent"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}},
			Options: options.Index().SetName("status_idle"),
		},
	})
	return err
}
