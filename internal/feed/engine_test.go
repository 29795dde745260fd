package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/events"
	"github.com/anonto42/lofi-room/backend/internal/identity"
	"github.com/anonto42/lofi-room/backend/internal/media"
	"github.com/anonto42/lofi-room/backend/internal/moderation"
	"github.com/anonto42/lofi-room/backend/internal/store"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Check(ctx context.Context, image []byte, contentType string) (*moderation.Verdict, error) {
	args := m.Called(ctx, image, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*moderation.Verdict), args.Error(1)
}

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, f *media.File) (string, error) {
	args := m.Called(ctx, f)
	return args.String(0), args.Error(1)
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, uid string) {
	m.Called(ctx, uid)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// countingStore counts mutating calls on top of a MemoryStore.
type countingStore struct {
	*store.MemoryStore
	writes atomic.Int32
	block  chan struct{}
}

func (s *countingStore) Add(ctx context.Context, collection string, data map[string]interface{}) (string, error) {
	s.writes.Add(1)
	return s.MemoryStore.Add(ctx, collection, data)
}

func (s *countingStore) Update(ctx context.Context, docPath string, updates []store.Update) error {
	s.writes.Add(1)
	if s.block != nil {
		<-s.block
	}
	return s.MemoryStore.Update(ctx, docPath, updates)
}

func (s *countingStore) Delete(ctx context.Context, docPath string) error {
	s.writes.Add(1)
	return s.MemoryStore.Delete(ctx, docPath)
}

type testEnv struct {
	engine    *Engine
	store     *countingStore
	checker   *mockChecker
	uploader  *mockUploader
	publisher *recordingPublisher
	profiles  *mockInvalidator
	log       *logtest.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	var tick atomic.Int64
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.SetClock(func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) })

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	env := &testEnv{
		store:     &countingStore{MemoryStore: mem},
		checker:   new(mockChecker),
		uploader:  new(mockUploader),
		publisher: &recordingPublisher{},
		profiles:  new(mockInvalidator),
		log:       hook,
	}
	env.engine = NewEngine(env.store, env.checker, env.uploader, env.publisher, env.profiles, log)
	return env
}

var (
	alice = &identity.Identity{UID: "alice", DisplayName: "Alice", PhotoURL: "https://img/alice.png"}
	bob   = &identity.Identity{UID: "bob", DisplayName: "Bob"}
	carol = &identity.Identity{UID: "carol", DisplayName: "Carol"}
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}

func imageFile(t *testing.T) *media.File {
	t.Helper()
	f, err := media.NewFile("cat.png", pngHeader)
	require.NoError(t, err)
	return f
}

func audioFile(t *testing.T) *media.File {
	t.Helper()
	f, err := media.NewFile("rain.mp3", append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...))
	require.NoError(t, err)
	return f
}

// createTextPost writes a text-only post by who and returns its stored form.
func (env *testEnv) createTextPost(t *testing.T, who *identity.Identity, text string) string {
	t.Helper()
	p, err := env.engine.CreatePost(context.Background(), who, &Draft{Text: text})
	require.NoError(t, err)
	return p.ID
}

func (env *testEnv) seedUser(t *testing.T, uid string) {
	t.Helper()
	require.NoError(t, env.store.MemoryStore.Create(context.Background(), store.Doc(usersCollection, uid), map[string]interface{}{
		"uid":       uid,
		"followers": []string{},
	}))
}
