package store

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements RemoteStore on Cloud Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new FirestoreStore
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

type firestoreDocument struct {
	snap *firestore.DocumentSnapshot
}

func (d *firestoreDocument) ID() string { return d.snap.Ref.ID }

func (d *firestoreDocument) DataTo(v interface{}) error { return d.snap.DataTo(v) }

func (s *FirestoreStore) query(q Query) firestore.Query {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, "==", f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	return query
}

// Subscribe streams query snapshots until Unsubscribe is called or ctx ends.
func (s *FirestoreStore) Subscribe(ctx context.Context, q Query, onNext SnapshotFunc, onErr ErrorFunc) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.query(q).Snapshots(ctx)
	l := newListener(onNext, onErr, cancel)

	go func() {
		// Stop must not run concurrently with Next, so the loop owns it.
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				l.fail(err)
				return
			}
			snaps, err := snap.Documents.GetAll()
			if err != nil {
				if ctx.Err() == nil {
					l.fail(err)
				}
				return
			}
			l.deliver(wrapSnapshots(snaps))
		}
	}()

	return l, nil
}

func (s *FirestoreStore) Query(ctx context.Context, q Query) ([]Document, error) {
	snaps, err := s.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	return wrapSnapshots(snaps), nil
}

func (s *FirestoreStore) Get(ctx context.Context, docPath string) (Document, error) {
	snap, err := s.client.Doc(docPath).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError(err)
	}
	return &firestoreDocument{snap: snap}, nil
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestoreData(data))
	if err != nil {
		return "", mapFirestoreError(err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Create(ctx context.Context, docPath string, data map[string]interface{}) error {
	_, err := s.client.Doc(docPath).Create(ctx, toFirestoreData(data))
	return mapFirestoreError(err)
}

func (s *FirestoreStore) Update(ctx context.Context, docPath string, updates []Update) error {
	fsUpdates := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		fsUpdates = append(fsUpdates, firestore.Update{Path: u.Path, Value: toFirestoreValue(u.Value)})
	}
	_, err := s.client.Doc(docPath).Update(ctx, fsUpdates)
	return mapFirestoreError(err)
}

func (s *FirestoreStore) Delete(ctx context.Context, docPath string) error {
	_, err := s.client.Doc(docPath).Delete(ctx)
	return mapFirestoreError(err)
}

func wrapSnapshots(snaps []*firestore.DocumentSnapshot) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, &firestoreDocument{snap: snap})
	}
	return docs
}

func toFirestoreData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = toFirestoreValue(v)
	}
	return out
}

func toFirestoreValue(v interface{}) interface{} {
	switch val := v.(type) {
	case serverTimestamp:
		return firestore.ServerTimestamp
	case arrayUnion:
		return firestore.ArrayUnion(val.values...)
	case arrayRemove:
		return firestore.ArrayRemove(val.values...)
	case map[string]interface{}:
		return toFirestoreData(val)
	}
	return v
}

func mapFirestoreError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return models.Wrap(models.ErrNotFound, err)
	case codes.AlreadyExists:
		return models.Wrap(models.ErrConflict, err)
	}
	return models.Wrap(models.ErrWriteFailed, err)
}
