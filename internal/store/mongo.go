package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// parentField links a sub-collection document to its parent document path.
const parentField = "_parent"

// MongoStore implements RemoteStore on MongoDB. Sub-collections such as
// "posts/abc/comments" are stored in a flat "comments" collection keyed by
// parentField. Live queries use change streams and need a replica set.
type MongoStore struct {
	db  *mongo.Database
	now func() time.Time
}

// NewMongoStore creates a new MongoStore
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type mongoDocument struct {
	id  string
	raw bson.Raw
}

func (d *mongoDocument) ID() string { return d.id }

func (d *mongoDocument) DataTo(v interface{}) error { return bson.Unmarshal(d.raw, v) }

// target maps a collection path to the backing collection and parent path.
func (s *MongoStore) target(collection string) (*mongo.Collection, string) {
	segments := strings.Split(collection, "/")
	name := segments[len(segments)-1]
	parent := strings.Join(segments[:len(segments)-1], "/")
	return s.db.Collection(name), parent
}

func (s *MongoStore) filter(q Query, parent string) bson.M {
	filter := bson.M{}
	for _, f := range q.Filters {
		filter[f.Field] = f.Value
	}
	if parent != "" {
		filter[parentField] = parent
	}
	return filter
}

func (s *MongoStore) find(ctx context.Context, q Query) ([]Document, error) {
	coll, parent := s.target(q.Collection)
	findOptions := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Direction == Desc {
			dir = -1
		}
		findOptions.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	}
	cursor, err := coll.Find(ctx, s.filter(q, parent), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []Document
	for cursor.Next(ctx) {
		raw := make(bson.Raw, len(cursor.Current))
		copy(raw, cursor.Current)
		id, _ := raw.Lookup("_id").StringValueOK()
		docs = append(docs, &mongoDocument{id: id, raw: raw})
	}
	return docs, cursor.Err()
}

// Subscribe watches the backing collection and re-runs the query on every change.
func (s *MongoStore) Subscribe(ctx context.Context, q Query, onNext SnapshotFunc, onErr ErrorFunc) (Subscription, error) {
	coll, _ := s.target(q.Collection)
	ctx, cancel := context.WithCancel(ctx)

	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open change stream on %s: %w", q.Collection, err)
	}
	l := newListener(onNext, onErr, cancel)

	go func() {
		defer stream.Close(context.Background())

		docs, err := s.find(ctx, q)
		if err != nil {
			if ctx.Err() == nil {
				l.fail(err)
			}
			return
		}
		l.deliver(docs)

		for stream.Next(ctx) {
			docs, err := s.find(ctx, q)
			if err != nil {
				if ctx.Err() == nil {
					l.fail(err)
				}
				return
			}
			l.deliver(docs)
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			l.fail(err)
		}
	}()

	return l, nil
}

func (s *MongoStore) Query(ctx context.Context, q Query) ([]Document, error) {
	return s.find(ctx, q)
}

func (s *MongoStore) Get(ctx context.Context, docPath string) (Document, error) {
	collection, id := splitDocPath(docPath)
	coll, parent := s.target(collection)
	filter := bson.M{"_id": id}
	if parent != "" {
		filter[parentField] = parent
	}
	raw, err := coll.FindOne(ctx, filter).Raw()
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, models.NewNotFoundError(collection, id)
		}
		return nil, err
	}
	return &mongoDocument{id: id, raw: raw}, nil
}

func (s *MongoStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := primitive.NewObjectID().Hex()
	if err := s.insert(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Create(ctx context.Context, docPath string, data map[string]interface{}) error {
	collection, id := splitDocPath(docPath)
	return s.insert(ctx, collection, id, data)
}

func (s *MongoStore) insert(ctx context.Context, collection, id string, data map[string]interface{}) error {
	coll, parent := s.target(collection)
	doc := s.resolve(data)
	doc["_id"] = id
	if parent != "" {
		doc[parentField] = parent
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Wrap(models.ErrConflict, err)
		}
		return models.Wrap(models.ErrWriteFailed, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, docPath string, updates []Update) error {
	collection, id := splitDocPath(docPath)
	coll, parent := s.target(collection)

	update := s.updateDocument(updates)

	filter := bson.M{"_id": id}
	if parent != "" {
		filter[parentField] = parent
	}
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return models.Wrap(models.ErrWriteFailed, err)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError(collection, id)
	}
	return nil
}

// updateDocument translates field updates into Mongo update operators.
func (s *MongoStore) updateDocument(updates []Update) bson.M {
	set, addToSet, pull, currentDate := bson.M{}, bson.M{}, bson.M{}, bson.M{}
	for _, u := range updates {
		switch v := u.Value.(type) {
		case arrayUnion:
			addToSet[u.Path] = bson.M{"$each": v.values}
		case arrayRemove:
			pull[u.Path] = bson.M{"$in": v.values}
		case serverTimestamp:
			currentDate[u.Path] = true
		default:
			set[u.Path] = s.resolveValue(v)
		}
	}
	update := bson.M{}
	for op, fields := range map[string]bson.M{"$set": set, "$addToSet": addToSet, "$pull": pull, "$currentDate": currentDate} {
		if len(fields) > 0 {
			update[op] = fields
		}
	}
	return update
}

func (s *MongoStore) Delete(ctx context.Context, docPath string) error {
	collection, id := splitDocPath(docPath)
	coll, parent := s.target(collection)
	filter := bson.M{"_id": id}
	if parent != "" {
		filter[parentField] = parent
	}
	if _, err := coll.DeleteOne(ctx, filter); err != nil {
		return models.Wrap(models.ErrWriteFailed, err)
	}
	return nil
}

// resolve replaces sentinels for an insert, where there is no prior value.
func (s *MongoStore) resolve(data map[string]interface{}) bson.M {
	out := bson.M{}
	for k, v := range data {
		out[k] = s.resolveValue(v)
	}
	return out
}

func (s *MongoStore) resolveValue(v interface{}) interface{} {
	switch val := v.(type) {
	case serverTimestamp:
		return s.now()
	case arrayUnion:
		return val.values
	case arrayRemove:
		return []interface{}{}
	case map[string]interface{}:
		return s.resolve(val)
	}
	return v
}
