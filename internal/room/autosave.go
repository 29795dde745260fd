package room

import (
	"context"
	"sync"
	"time"

	"github.com/anonto42/lofi-room/backend/internal/metrics"
	"github.com/anonto42/lofi-room/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultDelay is the quiet period before room settings are persisted.
const DefaultDelay = time.Second

const saveTimeout = 10 * time.Second

// SettingsSaver persists room settings
type SettingsSaver interface {
	UpdateRoomSettings(ctx context.Context, uid string, s models.RoomSettings) error
}

type pendingSave struct {
	settings models.RoomSettings
	timer    *time.Timer
}

// Autosaver debounces room settings per user: only the last change in a
// quiet window of delay is written.
type Autosaver struct {
	saver SettingsSaver
	delay time.Duration
	log   logrus.FieldLogger

	mu      sync.Mutex
	pending map[string]*pendingSave
	closed  bool
	wg      sync.WaitGroup
}

// NewAutosaver creates a new Autosaver
func NewAutosaver(saver SettingsSaver, delay time.Duration, log logrus.FieldLogger) *Autosaver {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Autosaver{
		saver:   saver,
		delay:   delay,
		log:     log,
		pending: make(map[string]*pendingSave),
	}
}

// Schedule queues s for uid, restarting the user's timer.
func (a *Autosaver) Schedule(uid string, s models.RoomSettings) error {
	if !ValidSceneIndex(s.CurrentSceneIndex) {
		return models.NewValidationError("unknown scene index")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return context.Canceled
	}
	if prev, ok := a.pending[uid]; ok {
		prev.timer.Stop()
	}
	p := &pendingSave{settings: s}
	p.timer = time.AfterFunc(a.delay, func() { a.fire(uid, p) })
	a.pending[uid] = p
	return nil
}

func (a *Autosaver) fire(uid string, p *pendingSave) {
	a.mu.Lock()
	if a.pending[uid] != p {
		a.mu.Unlock()
		return
	}
	delete(a.pending, uid)
	a.wg.Add(1)
	a.mu.Unlock()

	defer a.wg.Done()
	a.save(uid, p.settings)
}

func (a *Autosaver) save(uid string, s models.RoomSettings) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := a.saver.UpdateRoomSettings(ctx, uid, s); err != nil {
		metrics.AutosavesFlushed.WithLabelValues("error").Inc()
		a.log.WithError(err).WithField("uid", uid).Error("failed to save room settings")
		return
	}
	metrics.AutosavesFlushed.WithLabelValues("ok").Inc()
	a.log.WithField("uid", uid).Debug("room settings saved")
}

// Pending reports whether a save is queued for uid.
func (a *Autosaver) Pending(uid string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[uid]
	return ok
}

// Close writes every queued save immediately and waits for running ones.
func (a *Autosaver) Close() {
	a.mu.Lock()
	a.closed = true
	queued := a.pending
	a.pending = make(map[string]*pendingSave)
	a.mu.Unlock()

	// entries still in the map have not been claimed by fire
	for uid, p := range queued {
		p.timer.Stop()
		a.save(uid, p.settings)
	}
	a.wg.Wait()
}
