package feed

import (
	"context"
	"strings"
	"sync"

	"github.com/anonto42/lofi-room/backend/internal/events"
	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/anonto42/lofi-room/backend/internal/metrics"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/store"
)

// Thread is a live, createdAt-ascending view of one post's comments.
type Thread struct {
	PostID string

	mu       sync.Mutex
	comments []models.Comment
	closed   bool
	sub      store.Subscription
	once     sync.Once
}

func threadQuery(postID string) store.Query {
	return store.Query{Collection: commentsPath(postID), OrderBy: "createdAt", Direction: store.Asc}
}

// OpenThread subscribes to the comments of postID. onChange must not call Close.
func (e *Engine) OpenThread(ctx context.Context, postID string, onChange func([]models.Comment)) (*Thread, error) {
	t := &Thread{PostID: postID}

	sub, err := e.store.Subscribe(ctx, threadQuery(postID),
		func(docs []store.Document) {
			comments := e.decodeComments(postID, docs)
			t.mu.Lock()
			if t.closed {
				t.mu.Unlock()
				return
			}
			t.comments = comments
			t.mu.Unlock()
			if onChange != nil {
				onChange(append([]models.Comment(nil), comments...))
			}
		},
		func(err error) {
			e.log.WithError(err).WithField("post_id", postID).Error("comment subscription failed")
		},
	)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()
	metrics.ActiveSubscriptions.WithLabelValues("thread").Inc()
	return t, nil
}

// Comments returns a copy of the latest snapshot.
func (t *Thread) Comments() []models.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.Comment(nil), t.comments...)
}

// Close releases the subscription exactly once.
func (t *Thread) Close() {
	t.once.Do(func() {
		t.mu.Lock()
		t.closed = true
		sub := t.sub
		t.mu.Unlock()
		sub.Unsubscribe()
		metrics.ActiveSubscriptions.WithLabelValues("thread").Dec()
	})
}

// Comments reads the comments of a post once.
func (e *Engine) Comments(ctx context.Context, postID string) ([]models.Comment, error) {
	docs, err := e.store.Query(ctx, threadQuery(postID))
	if err != nil {
		return nil, err
	}
	return e.decodeComments(postID, docs), nil
}

// AddComment appends a comment to a post.
func (e *Engine) AddComment(ctx context.Context, who *identity.Identity, postID, text string) (*models.Comment, error) {
	if who == nil {
		return nil, models.ErrUnauthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("comment text is required")
	}

	id, err := e.store.Add(ctx, commentsPath(postID), map[string]interface{}{
		"authorId":     who.UID,
		"authorName":   who.DisplayName,
		"authorAvatar": who.PhotoURL,
		"text":         text,
		"createdAt":    store.ServerTimestamp,
	})
	if err != nil {
		if models.CodeOf(err) == "" {
			err = models.Wrap(models.ErrWriteFailed, err)
		}
		return nil, err
	}

	e.publish(ctx, events.Event{Type: events.CommentCreated, ActorID: who.UID, PostID: postID})
	return &models.Comment{
		ID:           id,
		PostID:       postID,
		AuthorID:     who.UID,
		AuthorName:   who.DisplayName,
		AuthorAvatar: who.PhotoURL,
		Text:         text,
	}, nil
}

// CanDeleteComment reports whether who may delete c: the comment's author
// or the author of the post it belongs to.
func CanDeleteComment(who *identity.Identity, p *models.Post, c *models.Comment) bool {
	if who == nil || c == nil {
		return false
	}
	if who.UID == c.AuthorID {
		return true
	}
	return p != nil && who.UID == p.AuthorID
}

// DeleteComment removes a comment from a post.
func (e *Engine) DeleteComment(ctx context.Context, who *identity.Identity, p *models.Post, c *models.Comment) error {
	if who == nil {
		return models.ErrUnauthenticated
	}
	if !CanDeleteComment(who, p, c) {
		return models.ErrForbidden
	}
	if err := e.store.Delete(ctx, store.Doc(commentsPath(p.ID), c.ID)); err != nil {
		if models.CodeOf(err) == "" {
			err = models.Wrap(models.ErrWriteFailed, err)
		}
		return err
	}
	return nil
}
