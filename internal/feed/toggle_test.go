package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/events"
	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/anonto42/lofi-room/backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) profile(t *testing.T, uid string) *models.UserProfile {
	t.Helper()
	doc, err := env.store.Get(context.Background(), store.Doc(usersCollection, uid))
	require.NoError(t, err)
	var u models.UserProfile
	require.NoError(t, doc.DataTo(&u))
	return &u
}

func TestToggleLike_FlipsMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createTextPost(t, alice, "like me")

	p, err := env.engine.Post(ctx, id)
	require.NoError(t, err)

	liked, err := env.engine.ToggleLike(ctx, bob, p)
	require.NoError(t, err)
	assert.True(t, liked)

	p, err = env.engine.Post(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, p.Likes)

	liked, err = env.engine.ToggleLike(ctx, bob, p)
	require.NoError(t, err)
	assert.False(t, liked)

	p, err = env.engine.Post(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, p.Likes)

	assert.Equal(t, []string{events.PostCreated, events.PostLiked}, env.publisher.types())
}

func TestToggleLike_StaleSnapshotNeverDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createTextPost(t, alice, "stale")

	stale, err := env.engine.Post(ctx, id)
	require.NoError(t, err)

	// both toggles decide from the same pre-like snapshot
	_, err = env.engine.ToggleLike(ctx, bob, stale)
	require.NoError(t, err)
	_, err = env.engine.ToggleLike(ctx, bob, stale)
	require.NoError(t, err)

	p, err := env.engine.Post(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, p.Likes)
}

func TestToggleLike_ManyUsers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createTextPost(t, alice, "popular")

	for _, who := range []string{"bob", "carol", "dave"} {
		p, err := env.engine.Post(ctx, id)
		require.NoError(t, err)
		_, err = env.engine.ToggleLike(ctx, &identity.Identity{UID: who}, p)
		require.NoError(t, err)
	}

	p, err := env.engine.Post(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol", "dave"}, p.Likes)
	assert.Equal(t, 3, models.NewPostResponse(*p, "carol").LikesCount)
	assert.True(t, models.NewPostResponse(*p, "carol").IsLiked)
	assert.False(t, models.NewPostResponse(*p, "alice").IsLiked)
}

func TestToggleLike_InFlightIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.createTextPost(t, alice, "slow")
	p, err := env.engine.Post(ctx, id)
	require.NoError(t, err)

	env.store.block = make(chan struct{})
	bobDone := make(chan error, 1)
	go func() {
		_, err := env.engine.ToggleLike(ctx, bob, p)
		bobDone <- err
	}()
	require.Eventually(t, func() bool { return env.store.writes.Load() == 2 }, time.Second, 5*time.Millisecond)

	liked, err := env.engine.ToggleLike(ctx, bob, p)
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.False(t, liked)
	assert.Equal(t, int32(2), env.store.writes.Load())

	// another user's toggle on the same post still reaches the store
	carolDone := make(chan error, 1)
	go func() {
		_, err := env.engine.ToggleLike(ctx, carol, p)
		carolDone <- err
	}()
	require.Eventually(t, func() bool { return env.store.writes.Load() == 3 }, time.Second, 5*time.Millisecond)

	close(env.store.block)
	require.NoError(t, <-bobDone)
	require.NoError(t, <-carolDone)

	p, err = env.engine.Post(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol"}, p.Likes)

	// the guard is released once the write settles
	liked, err = env.engine.ToggleLike(ctx, bob, p)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestToggleLike_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.ToggleLike(context.Background(), nil, &models.Post{ID: "p"})
	assert.True(t, errors.Is(err, models.ErrUnauthenticated))
	assert.Equal(t, int32(0), env.store.writes.Load())
}

func TestToggleFollow_FlipsMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser(t, "bob")
	env.profiles.On("Invalidate", mock.Anything, "bob").Return().Twice()

	following, err := env.engine.ToggleFollow(ctx, alice, env.profile(t, "bob"))
	require.NoError(t, err)
	assert.True(t, following)
	assert.Equal(t, []string{"alice"}, env.profile(t, "bob").Followers)

	following, err = env.engine.ToggleFollow(ctx, alice, env.profile(t, "bob"))
	require.NoError(t, err)
	assert.False(t, following)
	assert.Empty(t, env.profile(t, "bob").Followers)

	env.profiles.AssertExpectations(t)
	assert.Equal(t, []string{events.UserFollowed}, env.publisher.types())
}

func TestToggleFollow_SelfIsRejectedWithoutWrites(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice")

	_, err := env.engine.ToggleFollow(context.Background(), alice, env.profile(t, "alice"))
	assert.True(t, errors.Is(err, models.ErrSelfFollow))
	assert.Equal(t, int32(0), env.store.writes.Load())
	assert.Empty(t, env.profile(t, "alice").Followers)
	env.profiles.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}

func TestToggleFollow_MissingTarget(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.ToggleFollow(context.Background(), alice, &models.UserProfile{UID: "ghost"})
	assert.True(t, errors.Is(err, models.ErrNotFound))
	env.profiles.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
}
