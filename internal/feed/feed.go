package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/anonto42/lofi-room/backend/internal/metrics"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/store"
)

var ErrClosed = errors.New("feed is closed")

// Scope selects which posts a feed shows. The zero value is the global feed.
type Scope struct {
	OwnerID string
}

func Global() Scope { return Scope{} }

func Wall(ownerID string) Scope { return Scope{OwnerID: ownerID} }

func (s Scope) IsGlobal() bool { return s.OwnerID == "" }

func (s Scope) query() store.Query {
	q := store.Query{Collection: postsCollection, OrderBy: "createdAt", Direction: store.Desc}
	if !s.IsGlobal() {
		q = q.Where("ownerScopeId", s.OwnerID)
	}
	return q
}

// Feed is a live, createdAt-descending view of the posts in one scope.
// Every snapshot replaces the whole list.
type Feed struct {
	engine   *Engine
	ctx      context.Context
	onChange func(Scope, []models.Post)

	mu     sync.Mutex
	scope  Scope
	posts  []models.Post
	gen    uint64
	sub    store.Subscription
	closed bool
}

// Subscribe opens a live view of scope. onChange receives the scope and a
// copy of the list after each snapshot; it must not call Close or SetScope.
func (e *Engine) Subscribe(ctx context.Context, scope Scope, onChange func(Scope, []models.Post)) (*Feed, error) {
	f := &Feed{engine: e, ctx: ctx, onChange: onChange}
	metrics.ActiveSubscriptions.WithLabelValues("feed").Inc()
	if err := f.SetScope(scope); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// SetScope tears down the current stream and opens one for scope.
// Snapshots from the previous stream are discarded.
func (f *Feed) SetScope(scope Scope) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	old := f.sub
	f.sub = nil
	f.gen++
	gen := f.gen
	f.scope = scope
	f.posts = nil
	f.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}

	sub, err := f.engine.store.Subscribe(f.ctx, scope.query(),
		func(docs []store.Document) { f.apply(gen, docs) },
		func(err error) {
			f.engine.log.WithError(err).WithField("scope", scope.OwnerID).Error("feed subscription failed")
		},
	)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.closed || f.gen != gen {
		f.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	f.sub = sub
	f.mu.Unlock()
	return nil
}

func (f *Feed) apply(gen uint64, docs []store.Document) {
	posts := f.engine.decodePosts(docs)

	f.mu.Lock()
	if f.closed || f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.posts = posts
	scope := f.scope
	out := append([]models.Post(nil), posts...)
	f.mu.Unlock()

	if f.onChange != nil {
		f.onChange(scope, out)
	}
}

// Scope returns the scope currently shown.
func (f *Feed) Scope() Scope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scope
}

// Posts returns a copy of the latest snapshot.
func (f *Feed) Posts() []models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Post(nil), f.posts...)
}

// Find returns the post with id from the latest snapshot.
func (f *Feed) Find(id string) (models.Post, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

// Close releases the subscription. It is safe to call more than once, and
// no onChange call is running or will run once it returns.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	metrics.ActiveSubscriptions.WithLabelValues("feed").Dec()
}

// Snapshot reads the posts of scope once.
func (e *Engine) Snapshot(ctx context.Context, scope Scope) ([]models.Post, error) {
	docs, err := e.store.Query(ctx, scope.query())
	if err != nil {
		return nil, err
	}
	return e.decodePosts(docs), nil
}

// FilterByKind keeps posts whose media kind matches. "all" or "" keeps everything.
func FilterByKind(posts []models.Post, kind string) []models.Post {
	if kind == "" || kind == "all" {
		return posts
	}
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.Media != nil && string(p.Media.Kind) == kind {
			out = append(out, p)
		}
	}
	return out
}
