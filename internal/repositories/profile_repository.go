package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	usersCollection    = "users"
	profileCachePrefix = "profile:"
)

// ProfileRepository defines the interface for user profile operations
type ProfileRepository interface {
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	EnsureProfile(ctx context.Context, p models.UserProfile) (*models.UserProfile, error)
	UpdateRoomSettings(ctx context.Context, uid string, s models.RoomSettings) error
	Invalidate(ctx context.Context, uid string)
}

// StoreProfileRepository implements ProfileRepository over the users
// collection with an optional Redis read-through cache.
type StoreProfileRepository struct {
	store store.RemoteStore
	cache *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

// NewStoreProfileRepository creates a new StoreProfileRepository. cache may be nil.
func NewStoreProfileRepository(st store.RemoteStore, cache *redis.Client, ttl time.Duration, log logrus.FieldLogger) *StoreProfileRepository {
	return &StoreProfileRepository{store: st, cache: cache, ttl: ttl, log: log}
}

// GetProfile reads users/{uid}, serving from cache when possible
func (r *StoreProfileRepository) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	if r.cache != nil {
		raw, err := r.cache.Get(ctx, profileCachePrefix+uid).Bytes()
		if err == nil {
			var p models.UserProfile
			if err := json.Unmarshal(raw, &p); err == nil {
				return &p, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			r.log.WithError(err).Warn("profile cache read failed")
		}
	}

	doc, err := r.store.Get(ctx, store.Doc(usersCollection, uid))
	if err != nil {
		return nil, err
	}
	var p models.UserProfile
	if err := doc.DataTo(&p); err != nil {
		return nil, err
	}
	if p.UID == "" {
		p.UID = doc.ID()
	}
	if p.Followers == nil {
		p.Followers = []string{}
	}

	if r.cache != nil {
		if raw, err := json.Marshal(p); err == nil {
			if err := r.cache.Set(ctx, profileCachePrefix+uid, raw, r.ttl).Err(); err != nil {
				r.log.WithError(err).Warn("profile cache write failed")
			}
		}
	}
	return &p, nil
}

// EnsureProfile creates the profile with empty followers and default room
// settings, or returns the existing one untouched.
func (r *StoreProfileRepository) EnsureProfile(ctx context.Context, p models.UserProfile) (*models.UserProfile, error) {
	settings := models.DefaultRoomSettings()
	err := r.store.Create(ctx, store.Doc(usersCollection, p.UID), map[string]interface{}{
		"uid":         p.UID,
		"displayName": p.DisplayName,
		"photoURL":    p.PhotoURL,
		"followers":   []string{},
		"roomSettings": map[string]interface{}{
			"isLightsOn":        settings.IsLightsOn,
			"currentSceneIndex": settings.CurrentSceneIndex,
		},
		"createdAt": store.ServerTimestamp,
	})
	if err != nil && !errors.Is(err, models.ErrConflict) {
		return nil, err
	}
	if err == nil {
		r.log.WithField("uid", p.UID).Info("profile created")
	}
	return r.GetProfile(ctx, p.UID)
}

// UpdateRoomSettings overwrites roomSettings on users/{uid}
func (r *StoreProfileRepository) UpdateRoomSettings(ctx context.Context, uid string, s models.RoomSettings) error {
	err := r.store.Update(ctx, store.Doc(usersCollection, uid), []store.Update{{
		Path: "roomSettings",
		Value: map[string]interface{}{
			"isLightsOn":        s.IsLightsOn,
			"currentSceneIndex": s.CurrentSceneIndex,
		},
	}})
	if err != nil {
		return err
	}
	r.Invalidate(ctx, uid)
	return nil
}

// Invalidate drops the cached copy of a profile
func (r *StoreProfileRepository) Invalidate(ctx context.Context, uid string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, profileCachePrefix+uid).Err(); err != nil {
		r.log.WithError(err).Warn("profile cache invalidation failed")
	}
}
