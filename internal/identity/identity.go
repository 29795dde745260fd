package identity

import (
	"context"
	"sync"

	"github.com/anonto42/lofi-room/backend/internal/models"
)

// Identity is the signed-in user as seen by the engine
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// FromClaims builds an Identity from session claims.
func FromClaims(c *models.SessionClaims) *Identity {
	return &Identity{UID: c.UID, DisplayName: c.Name, PhotoURL: c.Picture}
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx, or nil.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// Session is an observable "current identity" for one long-lived client.
type Session struct {
	mu        sync.Mutex
	current   *Identity
	token     string
	observers []func(*Identity)
}

func NewSession(id *Identity, token string) *Session {
	return &Session{current: id, token: token}
}

func (s *Session) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Set replaces the identity and notifies observers. A nil id signs out.
func (s *Session) Set(id *Identity, token string) {
	s.mu.Lock()
	s.current = id
	s.token = token
	observers := make([]func(*Identity), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(id)
	}
}

// Observe registers fn to run on every identity change.
func (s *Session) Observe(fn func(*Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}
