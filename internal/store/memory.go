package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process RemoteStore. Snapshots are delivered
// synchronously on the writing goroutine, after the write is visible.
type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]map[string]map[string]interface{}
	listeners map[*memoryListener]struct{}
	now       func() time.Time

	// deliverMu keeps snapshot order equal to write order
	deliverMu sync.Mutex
}

type memoryListener struct {
	*listener
	query Query
}

type memoryDocument struct {
	id   string
	data map[string]interface{}
}

func (d *memoryDocument) ID() string { return d.id }

func (d *memoryDocument) DataTo(v interface{}) error {
	raw, err := json.Marshal(d.data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]map[string]map[string]interface{}),
		listeners: make(map[*memoryListener]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the clock used for ServerTimestamp.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ListenerCount returns the number of live subscriptions.
func (s *MemoryStore) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query, onNext SnapshotFunc, onErr ErrorFunc) (Subscription, error) {
	ml := &memoryListener{query: q}
	ml.listener = newListener(onNext, onErr, func() {
		s.mu.Lock()
		delete(s.listeners, ml)
		s.mu.Unlock()
	})

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.listeners[ml] = struct{}{}
	s.mu.Unlock()

	ml.deliver(s.run(q))
	return ml, nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.run(q), nil
}

func (s *MemoryStore) Get(ctx context.Context, docPath string) (Document, error) {
	collection, id := splitDocPath(docPath)
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[collection][id]
	if !ok {
		return nil, models.NewNotFoundError(collection, id)
	}
	return &memoryDocument{id: id, data: copyData(data)}, nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := s.write(ctx, collection, func() error {
		s.put(collection, id, data)
		return nil
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Create(ctx context.Context, docPath string, data map[string]interface{}) error {
	collection, id := splitDocPath(docPath)
	return s.write(ctx, collection, func() error {
		if _, exists := s.docs[collection][id]; exists {
			return models.Wrap(models.ErrConflict, fmt.Errorf("document %s already exists", docPath))
		}
		s.put(collection, id, data)
		return nil
	})
}

func (s *MemoryStore) Update(ctx context.Context, docPath string, updates []Update) error {
	collection, id := splitDocPath(docPath)
	return s.write(ctx, collection, func() error {
		doc, ok := s.docs[collection][id]
		if !ok {
			return models.NewNotFoundError(collection, id)
		}
		for _, u := range updates {
			doc[u.Path] = s.apply(doc[u.Path], u.Value)
		}
		return nil
	})
}

func (s *MemoryStore) Delete(ctx context.Context, docPath string) error {
	collection, id := splitDocPath(docPath)
	return s.write(ctx, collection, func() error {
		delete(s.docs[collection], id)
		return nil
	})
}

// write applies fn under the store lock and then notifies listeners of
// the touched collection.
func (s *MemoryStore) write(ctx context.Context, collection string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return models.Wrap(models.ErrWriteFailed, err)
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	err := fn()
	var targets []*memoryListener
	for ml := range s.listeners {
		if ml.query.Collection == collection {
			targets = append(targets, ml)
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for _, ml := range targets {
		ml.deliver(s.run(ml.query))
	}
	return nil
}

func (s *MemoryStore) put(collection, id string, data map[string]interface{}) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]map[string]interface{})
	}
	doc := make(map[string]interface{}, len(data))
	for k, v := range data {
		doc[k] = s.apply(nil, v)
	}
	s.docs[collection][id] = doc
}

// apply resolves a written value against the current field value.
func (s *MemoryStore) apply(current, value interface{}) interface{} {
	switch v := value.(type) {
	case serverTimestamp:
		return s.now()
	case arrayUnion:
		out := toSlice(current)
		for _, add := range v.values {
			if !containsValue(out, add) {
				out = append(out, add)
			}
		}
		return out
	case arrayRemove:
		var out []interface{}
		for _, item := range toSlice(current) {
			if !containsValue(v.values, item) {
				out = append(out, item)
			}
		}
		if out == nil {
			out = []interface{}{}
		}
		return out
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, inner := range v {
			m[k] = s.apply(nil, inner)
		}
		return m
	default:
		if rv := reflect.ValueOf(value); rv.IsValid() && rv.Kind() == reflect.Slice {
			return toSlice(value)
		}
		return value
	}
}

func (s *MemoryStore) run(q Query) []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []*memoryDocument
	for id, data := range s.docs[q.Collection] {
		if matches(data, q.Filters) {
			docs = append(docs, &memoryDocument{id: id, data: copyData(data)})
		}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(docs[i].data[q.OrderBy], docs[j].data[q.OrderBy])
			if c != 0 {
				if q.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return docs[i].id < docs[j].id
	})

	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

func matches(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if compareValues(data[f.Field], f.Value) != 0 {
			return false
		}
	}
	return true
}

func copyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch inner := v.(type) {
		case []interface{}:
			out[k] = append([]interface{}(nil), inner...)
		case map[string]interface{}:
			out[k] = copyData(inner)
		default:
			out[k] = v
		}
	}
	return out
}

func toSlice(v interface{}) []interface{} {
	if v == nil {
		return []interface{}{}
	}
	if s, ok := v.([]interface{}); ok {
		return append([]interface{}(nil), s...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []interface{}{}
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func containsValue(items []interface{}, v interface{}) bool {
	for _, item := range items {
		if compareValues(item, v) == 0 {
			return true
		}
	}
	return false
}

// compareValues orders nil first, then numbers, strings, booleans and times.
// Values of unrelated types compare by their type rank.
func compareValues(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case nil:
		return 0
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	if reflect.DeepEqual(a, b) {
		return 0
	}
	return -1
}

func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	case time.Time:
		return 4
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 5
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
