package feed

import (
	"context"

	"github.com/anonto42/lofi-room/backend/internal/events"
	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/anonto42/lofi-room/backend/internal/metrics"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/store"
)

const usersCollection = "users"

// ToggleLike flips who's membership in the post's like set, deciding the
// direction from the given snapshot of the post. It returns the requested
// state. A toggle already in flight for the same post and user is refused.
func (e *Engine) ToggleLike(ctx context.Context, who *identity.Identity, p *models.Post) (bool, error) {
	if who == nil {
		return false, models.ErrUnauthenticated
	}
	key := "like:" + p.ID + ":" + who.UID
	if !e.acquire(key) {
		return p.HasLiked(who.UID), models.ErrConflict
	}
	defer e.release(key)

	liked := p.HasLiked(who.UID)
	op := store.ArrayUnion(who.UID)
	if liked {
		op = store.ArrayRemove(who.UID)
	}
	if err := e.store.Update(ctx, store.Doc(postsCollection, p.ID), []store.Update{{Path: "likes", Value: op}}); err != nil {
		e.log.WithError(err).WithField("post_id", p.ID).Warn("like toggle failed")
		return liked, err
	}

	metrics.Toggles.WithLabelValues("like", stateLabel(!liked)).Inc()
	if !liked {
		e.publish(ctx, events.Event{Type: events.PostLiked, ActorID: who.UID, TargetID: p.AuthorID, PostID: p.ID})
	}
	return !liked, nil
}

// ToggleFollow flips who's membership in target's follower set.
func (e *Engine) ToggleFollow(ctx context.Context, who *identity.Identity, target *models.UserProfile) (bool, error) {
	if who == nil {
		return false, models.ErrUnauthenticated
	}
	if who.UID == target.UID {
		return false, models.ErrSelfFollow
	}
	key := "follow:" + target.UID + ":" + who.UID
	if !e.acquire(key) {
		return target.IsFollowedBy(who.UID), models.ErrConflict
	}
	defer e.release(key)

	following := target.IsFollowedBy(who.UID)
	op := store.ArrayUnion(who.UID)
	if following {
		op = store.ArrayRemove(who.UID)
	}
	if err := e.store.Update(ctx, store.Doc(usersCollection, target.UID), []store.Update{{Path: "followers", Value: op}}); err != nil {
		e.log.WithError(err).WithField("target", target.UID).Warn("follow toggle failed")
		return following, err
	}
	if e.profiles != nil {
		e.profiles.Invalidate(ctx, target.UID)
	}

	metrics.Toggles.WithLabelValues("follow", stateLabel(!following)).Inc()
	if !following {
		e.publish(ctx, events.Event{Type: events.UserFollowed, ActorID: who.UID, TargetID: target.UID})
	}
	return !following, nil
}

func stateLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
