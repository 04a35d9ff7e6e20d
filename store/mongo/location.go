// Package mongo reads the location collection from MongoDB.
package mongo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hrygo/concierge/ai/location"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI        string
	Database   string
	Collection string        // default "locations"
	Timeout    time.Duration // connect timeout, default 10s
}

// LocationStore implements location.Store over a MongoDB collection.
// It never writes.
type LocationStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens a client and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*LocationStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database required")
	}
	if cfg.Collection == "" {
		cfg.Collection = "locations"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	// Nested payloads decode as maps so they serialize to plain JSON.
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongo")
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping mongo")
	}

	s := NewLocationStore(client.Database(cfg.Database).Collection(cfg.Collection))
	s.client = client
	return s, nil
}

// NewLocationStore wraps an existing collection.
func NewLocationStore(coll *mongo.Collection) *LocationStore {
	return &LocationStore{coll: coll}
}

// Close disconnects the client opened by Connect.
func (s *LocationStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Find implements location.Store.
func (s *LocationStore) Find(ctx context.Context, q location.Query) ([]location.Document, error) {
	if len(q.Fields) == 0 || len(q.Values) == 0 {
		return []location.Document{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "norm", Value: 1}})
	return s.find(ctx, findFilter(q), opts)
}

// FindPrefix implements location.Store with an anchored, escaped regex.
func (s *LocationStore) FindPrefix(ctx context.Context, field location.Field, prefix string, limit int) ([]location.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "norm", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, prefixFilter(field, prefix), opts)
}

func (s *LocationStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]location.Document, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query locations")
	}
	var raws []rawDocument
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, errors.Wrap(err, "failed to decode locations")
	}

	docs := make([]location.Document, 0, len(raws))
	for _, r := range raws {
		docs = append(docs, r.toDocument())
	}
	return docs, nil
}

// rawDocument adds the Mongo _id, which may be an ObjectID or a string.
type rawDocument struct {
	ObjectID          any `bson:"_id"`
	location.Document `bson:",inline"`
}

func (r rawDocument) toDocument() location.Document {
	doc := r.Document
	switch id := r.ObjectID.(type) {
	case primitive.ObjectID:
		doc.ID = id.Hex()
	case nil:
	default:
		doc.ID = fmt.Sprint(id)
	}
	return doc
}

// fieldNames maps a logical field to stored keys. Merged-from data exists
// under two spellings.
func fieldNames(f location.Field) []string {
	switch f {
	case location.FieldMergedFrom:
		return []string{"mergedFrom", "merged_from"}
	default:
		return []string{string(f)}
	}
}

func findFilter(q location.Query) bson.M {
	values := bson.A{}
	for _, v := range q.Values {
		values = append(values, v)
	}

	or := bson.A{}
	for _, f := range q.Fields {
		for _, name := range fieldNames(f) {
			// $in on an array field matches when any element is listed.
			or = append(or, bson.M{name: bson.M{"$in": values}})
		}
	}

	filter := bson.M{"$or": or}
	if q.ExcludeRegions {
		filter["type"] = bson.M{"$ne": location.TypeRegion}
	}
	return filter
}

func prefixFilter(field location.Field, prefix string) bson.M {
	re := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}
	names := fieldNames(field)
	if len(names) == 1 {
		return bson.M{names[0]: re}
	}
	or := bson.A{}
	for _, name := range names {
		or = append(or, bson.M{name: re})
	}
	return bson.M{"$or": or}
}

var _ location.Store = (*LocationStore)(nil)
