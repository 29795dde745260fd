package feed

import (
	"context"
	"sync"

	"github.com/anonto42/lofi-room/backend/internal/events"
	"github.com/anonto42/lofi-room/backend/internal/media"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/moderation"
	"github.com/anonto42/lofi-room/backend/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	postsCollection    = "posts"
	commentsCollection = "comments"
)

// ProfileInvalidator drops cached profiles after follower changes
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, uid string)
}

// Engine owns post views, the post pipeline and set-membership toggles.
type Engine struct {
	store     store.RemoteStore
	moderator moderation.Checker
	uploader  media.Uploader
	events    events.Publisher
	profiles  ProfileInvalidator
	log       logrus.FieldLogger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewEngine creates a new Engine. publisher and profiles may be nil.
func NewEngine(st store.RemoteStore, checker moderation.Checker, uploader media.Uploader, publisher events.Publisher, profiles ProfileInvalidator, log logrus.FieldLogger) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{
		store:     st,
		moderator: checker,
		uploader:  uploader,
		events:    publisher,
		profiles:  profiles,
		log:       log,
		inflight:  make(map[string]struct{}),
	}
}

// acquire marks key as in flight. It reports false when it already is.
func (e *Engine) acquire(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[key]; busy {
		return false
	}
	e.inflight[key] = struct{}{}
	return true
}

func (e *Engine) release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, key)
}

// publish sends an activity event without failing the caller.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.WithError(err).WithField("event", ev.Type).Warn("failed to publish activity event")
	}
}

// Post reads a single post.
func (e *Engine) Post(ctx context.Context, id string) (*models.Post, error) {
	doc, err := e.store.Get(ctx, store.Doc(postsCollection, id))
	if err != nil {
		return nil, err
	}
	return decodePost(doc)
}

// Comment reads a single comment of a post.
func (e *Engine) Comment(ctx context.Context, postID, id string) (*models.Comment, error) {
	doc, err := e.store.Get(ctx, store.Doc(commentsPath(postID), id))
	if err != nil {
		return nil, err
	}
	return decodeComment(postID, doc)
}

func decodePost(doc store.Document) (*models.Post, error) {
	var p models.Post
	if err := doc.DataTo(&p); err != nil {
		return nil, err
	}
	p.ID = doc.ID()
	if p.Likes == nil {
		p.Likes = []string{}
	}
	return &p, nil
}

func decodeComment(postID string, doc store.Document) (*models.Comment, error) {
	var c models.Comment
	if err := doc.DataTo(&c); err != nil {
		return nil, err
	}
	c.ID = doc.ID()
	c.PostID = postID
	return &c, nil
}

func (e *Engine) decodePosts(docs []store.Document) []models.Post {
	posts := make([]models.Post, 0, len(docs))
	for _, doc := range docs {
		p, err := decodePost(doc)
		if err != nil {
			e.log.WithError(err).WithField("post_id", doc.ID()).Warn("skipping undecodable post")
			continue
		}
		posts = append(posts, *p)
	}
	return posts
}

func (e *Engine) decodeComments(postID string, docs []store.Document) []models.Comment {
	comments := make([]models.Comment, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeComment(postID, doc)
		if err != nil {
			e.log.WithError(err).WithField("comment_id", doc.ID()).Warn("skipping undecodable comment")
			continue
		}
		comments = append(comments, *c)
	}
	return comments
}

func commentsPath(postID string) string {
	return store.Doc(postsCollection, postID) + "/" + commentsCollection
}
