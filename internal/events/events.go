package events

import (
	"context"
	"time"
)

// Routing keys of the activity exchange.
const (
	PostCreated    = "post.created"
	PostLiked      = "post.liked"
	UserFollowed   = "user.followed"
	CommentCreated = "comment.created"
)

// Event is one activity notification
type Event struct {
	Type      string    `json:"type"`
	ActorID   string    `json:"actorId"`
	TargetID  string    `json:"targetId"`
	PostID    string    `json:"postId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Publisher delivers activity events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
