package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/models"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type savedSettings struct {
	uid      string
	settings models.RoomSettings
}

type recordingSaver struct {
	mu    sync.Mutex
	saves []savedSettings
	err   error
}

func (r *recordingSaver) UpdateRoomSettings(_ context.Context, uid string, s models.RoomSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, savedSettings{uid: uid, settings: s})
	return r.err
}

func (r *recordingSaver) snapshot() []savedSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]savedSettings(nil), r.saves...)
}

func newAutosaver(t *testing.T, saver SettingsSaver, delay time.Duration) (*Autosaver, *logtest.Hook) {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	return NewAutosaver(saver, delay, log), hook
}

func TestAutosaver_OnlyLastChangeIsSaved(t *testing.T) {
	saver := &recordingSaver{}
	a, _ := newAutosaver(t, saver, 50*time.Millisecond)
	defer a.Close()

	require.NoError(t, a.Schedule("u1", models.RoomSettings{IsLightsOn: false, CurrentSceneIndex: 1}))
	require.NoError(t, a.Schedule("u1", models.RoomSettings{IsLightsOn: true, CurrentSceneIndex: 2}))
	require.NoError(t, a.Schedule("u1", models.RoomSettings{IsLightsOn: false, CurrentSceneIndex: 3}))
	assert.True(t, a.Pending("u1"))
	assert.Empty(t, saver.snapshot())

	require.Eventually(t, func() bool { return len(saver.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, a.Pending("u1"))

	// no late saves from the replaced timers
	time.Sleep(100 * time.Millisecond)
	saves := saver.snapshot()
	require.Len(t, saves, 1)
	assert.Equal(t, savedSettings{uid: "u1", settings: models.RoomSettings{IsLightsOn: false, CurrentSceneIndex: 3}}, saves[0])
}

func TestAutosaver_UsersAreIndependent(t *testing.T) {
	saver := &recordingSaver{}
	a, _ := newAutosaver(t, saver, 30*time.Millisecond)
	defer a.Close()

	require.NoError(t, a.Schedule("u1", models.RoomSettings{CurrentSceneIndex: 1}))
	require.NoError(t, a.Schedule("u2", models.RoomSettings{CurrentSceneIndex: 2}))

	require.Eventually(t, func() bool { return len(saver.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []savedSettings{
		{uid: "u1", settings: models.RoomSettings{CurrentSceneIndex: 1}},
		{uid: "u2", settings: models.RoomSettings{CurrentSceneIndex: 2}},
	}, saver.snapshot())
}

func TestAutosaver_CloseFlushesPending(t *testing.T) {
	saver := &recordingSaver{}
	a, _ := newAutosaver(t, saver, time.Hour)

	require.NoError(t, a.Schedule("u1", models.RoomSettings{IsLightsOn: true, CurrentSceneIndex: 2}))
	a.Close()

	saves := saver.snapshot()
	require.Len(t, saves, 1)
	assert.Equal(t, 2, saves[0].settings.CurrentSceneIndex)

	err := a.Schedule("u1", models.DefaultRoomSettings())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAutosaver_RejectsUnknownScene(t *testing.T) {
	saver := &recordingSaver{}
	a, _ := newAutosaver(t, saver, time.Hour)
	defer a.Close()

	err := a.Schedule("u1", models.RoomSettings{CurrentSceneIndex: len(Scenes())})
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
	err = a.Schedule("u1", models.RoomSettings{CurrentSceneIndex: -1})
	assert.Equal(t, models.CodeValidation, models.CodeOf(err))
	assert.False(t, a.Pending("u1"))
}

func TestAutosaver_SaveFailureIsLogged(t *testing.T) {
	saver := &recordingSaver{err: models.ErrWriteFailed}
	a, hook := newAutosaver(t, saver, 10*time.Millisecond)

	require.NoError(t, a.Schedule("u1", models.DefaultRoomSettings()))
	require.Eventually(t, func() bool { return len(saver.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	a.Close()

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "failed to save room settings", hook.LastEntry().Message)
}

func TestViewOf(t *testing.T) {
	v := ViewOf(&models.UserProfile{UID: "u1"})
	assert.True(t, v.IsLightsOn)
	assert.Equal(t, 0, v.Scene.Index)
	assert.True(t, v.IsRaining)

	v = ViewOf(&models.UserProfile{UID: "u1", RoomSettings: &models.RoomSettings{IsLightsOn: false, CurrentSceneIndex: 1}})
	assert.False(t, v.IsLightsOn)
	assert.Equal(t, "Chill City", v.Scene.Name)
	assert.False(t, v.IsRaining)

	v = ViewOf(&models.UserProfile{UID: "u1", RoomSettings: &models.RoomSettings{CurrentSceneIndex: 3}})
	assert.True(t, v.IsRaining)
}

func TestSceneAt(t *testing.T) {
	assert.Len(t, Scenes(), 4)
	assert.Equal(t, "Lofi Cafe", SceneAt(2).Name)
	assert.Equal(t, SceneAt(0), SceneAt(99))
	assert.Equal(t, SceneAt(0), SceneAt(-1))
	assert.True(t, ValidSceneIndex(3))
	assert.False(t, ValidSceneIndex(4))
}
