package store

import (
	"context"
	"strings"
	"sync"
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is an equality constraint on a top-level field
type Filter struct {
	Field string
	Value interface{}
}

// Query describes an ordered read over one collection. Collection may be a
// sub-collection path such as "posts/abc/comments".
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
}

func (q Query) Where(field string, value interface{}) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Document is one decoded row of a snapshot
type Document interface {
	ID() string
	DataTo(v interface{}) error
}

// Update sets Path to Value. Value may be one of the sentinels below.
type Update struct {
	Path  string
	Value interface{}
}

type SnapshotFunc func(docs []Document)

type ErrorFunc func(err error)

// Subscription is a live query. Unsubscribe is idempotent, and once it
// returns no further callbacks run.
type Subscription interface {
	Unsubscribe()
}

// RemoteStore is the hosted document database
type RemoteStore interface {
	Subscribe(ctx context.Context, q Query, onNext SnapshotFunc, onErr ErrorFunc) (Subscription, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, docPath string) (Document, error)
	Add(ctx context.Context, collection string, data map[string]interface{}) (string, error)
	Create(ctx context.Context, docPath string, data map[string]interface{}) error
	Update(ctx context.Context, docPath string, updates []Update) error
	Delete(ctx context.Context, docPath string) error
}

type arrayUnion struct{ values []interface{} }

type arrayRemove struct{ values []interface{} }

type serverTimestamp struct{}

// ArrayUnion adds values to an array field, skipping those already present.
func ArrayUnion(values ...interface{}) interface{} { return arrayUnion{values: values} }

// ArrayRemove removes every occurrence of values from an array field.
func ArrayRemove(values ...interface{}) interface{} { return arrayRemove{values: values} }

// ServerTimestamp is replaced by the store's clock when the write is applied.
var ServerTimestamp interface{} = serverTimestamp{}

// Doc joins a collection path and a document id.
func Doc(collection, id string) string {
	return collection + "/" + id
}

// splitDocPath splits "posts/abc/comments/xyz" into ("posts/abc/comments", "xyz").
func splitDocPath(docPath string) (string, string) {
	i := strings.LastIndex(docPath, "/")
	if i < 0 {
		return "", docPath
	}
	return docPath[:i], docPath[i+1:]
}

// listener serialises callbacks for one subscription. Callbacks run with mu
// held, so they must not call Unsubscribe or write to the store.
type listener struct {
	mu     sync.Mutex
	closed bool
	onNext SnapshotFunc
	onErr  ErrorFunc
	stop   func()
	once   sync.Once
}

func newListener(onNext SnapshotFunc, onErr ErrorFunc, stop func()) *listener {
	return &listener{onNext: onNext, onErr: onErr, stop: stop}
}

func (l *listener) deliver(docs []Document) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.onNext(docs)
}

func (l *listener) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.onErr == nil {
		return
	}
	l.onErr(err)
}

func (l *listener) Unsubscribe() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		if l.stop != nil {
			l.stop()
		}
	})
}

func (l *listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
