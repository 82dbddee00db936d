package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/driverscout/internal/config"
	"github.com/IshaanNene/driverscout/internal/types"
)

// MongoStorage archives result documents in a MongoDB collection.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoStorage connects to MongoDB and verifies the connection.
func NewMongoStorage(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	s := newMongoStorage(client.Database(cfg.Database).Collection(cfg.Collection), cfg.Timeout, logger)
	s.client = client
	return s, nil
}

func newMongoStorage(coll *mongo.Collection, timeout time.Duration, logger *slog.Logger) *MongoStorage {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MongoStorage{
		collection: coll,
		timeout:    timeout,
		logger:     logger.With("component", "mongo_storage"),
	}
}

func (s *MongoStorage) Name() string { return "mongodb" }

// Store inserts doc and reports the generated object id as ArchiveID.
func (s *MongoStorage) Store(ctx context.Context, doc *types.ResultDocument) (Location, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return Location{}, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("insert: %w", err)}
	}

	var id string
	switch v := res.InsertedID.(type) {
	case primitive.ObjectID:
		id = v.Hex()
	default:
		id = fmt.Sprint(v)
	}

	s.mu.Lock()
	s.count++
	total := s.count
	s.mu.Unlock()

	s.logger.Debug("result archived", "service_tag", doc.ServiceTag, "id", id, "total", total)
	return Location{ArchiveID: id}, nil
}

func (s *MongoStorage) Close() error {
	if s.client == nil {
		return nil
	}
	s.mu.Lock()
	total := s.count
	s.mu.Unlock()
	s.logger.Info("mongodb storage closing", "total_documents", total)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Primary + archive fan-out ---

// MultiStorage writes a document to a primary backend and then to any
// number of archive backends. Only a primary failure fails Store; archive
// failures are logged and reported in Location.ArchiveErrors.
type MultiStorage struct {
	primary  Storage
	archives []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a fan-out storage.
func NewMultiStorage(primary Storage, archives []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		primary:  primary,
		archives: archives,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

func (s *MultiStorage) Store(ctx context.Context, doc *types.ResultDocument) (Location, error) {
	loc, err := s.primary.Store(ctx, doc)
	if err != nil {
		return Location{}, err
	}

	for _, backend := range s.archives {
		aloc, err := backend.Store(ctx, doc)
		if err != nil {
			s.logger.Warn("archive store failed", "backend", backend.Name(), "error", err)
			loc.ArchiveErrors = append(loc.ArchiveErrors, err)
			continue
		}
		loc.merge(aloc)
	}
	return loc, nil
}

func (s *MultiStorage) Close() error {
	var firstErr error
	for _, backend := range append([]Storage{s.primary}, s.archives...) {
		if err := backend.Close(); err != nil {
			s.logger.Error("backend close failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
