// Package deck ties a recorder and a player to one device connection.
package deck

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/core"
	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/recorder"
	"github.com/tessro/rewind/internal/replay"
	"github.com/tessro/rewind/internal/timeline"
)

// DialFunc opens a connection the deck will own.
type DialFunc func(ctx context.Context) (core.Connection, error)

type options struct {
	clock            clockwork.Clock
	logger           *zap.Logger
	silenceThreshold time.Duration
	maxAttempts      int
	backoff          time.Duration
	callbacks        replay.Callbacks
}

// Option configures a Deck.
type Option func(*options)

// WithClock sets the clock shared by the recorder and the player.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSilenceThreshold sets the recorder's noise floor.
func WithSilenceThreshold(d time.Duration) Option {
	return func(o *options) { o.silenceThreshold = d }
}

// WithRetry sets the player's attempt bound and base backoff.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = maxAttempts
		o.backoff = backoff
	}
}

// WithCallbacks sets the player's event callbacks.
func WithCallbacks(cb replay.Callbacks) Option {
	return func(o *options) { o.callbacks = cb }
}

// Deck routes state notifications to a recorder and a player and keeps
// them from running at the same time.
type Deck struct {
	conn   core.Connection
	owned  bool
	logger *zap.Logger

	rec    *recorder.Recorder
	player *replay.Player

	mu          sync.Mutex
	unsubscribe func()
	disposed    bool
}

// Wrap builds a deck over conn. The caller keeps ownership of conn.
func Wrap(conn core.Connection, opts ...Option) *Deck {
	return newDeck(conn, false, opts)
}

// Dial opens a connection through dial and returns a deck that closes it
// on Dispose.
func Dial(ctx context.Context, dial DialFunc, opts ...Option) (*Deck, error) {
	conn, err := dial(ctx)
	if err != nil {
		return nil, err
	}
	return newDeck(conn, true, opts), nil
}

func newDeck(conn core.Connection, owned bool, opts []Option) *Deck {
	o := options{
		clock:            clockwork.NewRealClock(),
		logger:           zap.NewNop(),
		silenceThreshold: recorder.DefaultSilenceThreshold,
		maxAttempts:      replay.DefaultMaxAttempts,
		backoff:          replay.DefaultBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Deck{
		conn:   conn,
		owned:  owned,
		logger: o.logger,
	}

	var source core.StateSource
	var sink core.ControlSink
	var deviceID string
	if conn != nil {
		source, sink, deviceID = conn, conn, conn.DeviceID()
	}

	d.rec = recorder.New(source,
		recorder.WithClock(o.clock),
		recorder.WithSilenceThreshold(o.silenceThreshold),
		recorder.WithLogger(o.logger.Named("recorder")))

	d.player = replay.New(sink, deviceID,
		replay.WithClock(o.clock),
		replay.WithMaxAttempts(o.maxAttempts),
		replay.WithBackoff(o.backoff),
		replay.WithCallbacks(o.callbacks),
		replay.WithLogger(o.logger.Named("replay")))

	if conn != nil {
		d.unsubscribe = conn.Subscribe(d.route)
	}
	return d
}

func (d *Deck) route(snap *core.Snapshot) {
	d.rec.Observe(snap)
	d.player.Observe(snap)
}

func (d *Deck) ready() error {
	if d.disposed {
		return rwerrors.ErrInvalidState
	}
	if d.conn == nil || d.conn.DeviceID() == "" {
		return rwerrors.ErrDeviceNotReady
	}
	return nil
}

// StartRecording opens a new recording session.
func (d *Deck) StartRecording(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	if d.player.State() == replay.StatePlaying {
		return rwerrors.WithSuggestion(rwerrors.ErrInvalidState, "Stop the replay before recording")
	}
	return d.rec.Start(ctx)
}

// StopRecording finalises the session and returns its timeline.
func (d *Deck) StopRecording(ctx context.Context) (timeline.Timeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.Stop(ctx)
}

// Recording returns true while a recording session is open.
func (d *Deck) Recording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.Recording()
}

// Elapsed returns the recording session clock.
func (d *Deck) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.Elapsed()
}

// Timeline returns the recorder's timeline.
func (d *Deck) Timeline() timeline.Timeline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rec.Timeline()
}

// Play replays tl. A nil tl replays the last recorded timeline.
func (d *Deck) Play(ctx context.Context, tl timeline.Timeline) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ready(); err != nil {
		return err
	}
	if d.rec.Recording() {
		return rwerrors.WithSuggestion(rwerrors.ErrInvalidState, "Stop the recording before replaying")
	}
	if tl == nil {
		tl = d.rec.Timeline()
	}
	return d.player.Play(ctx, tl)
}

// StopPlayback aborts the replay, pausing the device when pause is set.
// OnFinish runs before it returns, with the deck locked, so callbacks
// must not call back into the deck.
func (d *Deck) StopPlayback(pause bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.player.Stop(pause)
}

// PlayerState returns the player's state.
func (d *Deck) PlayerState() replay.State {
	return d.player.State()
}

// Player exposes the player for introspection.
func (d *Deck) Player() *replay.Player {
	return d.player
}

// DeviceID returns the device the deck drives.
func (d *Deck) DeviceID() string {
	if d.conn == nil {
		return ""
	}
	return d.conn.DeviceID()
}

// Dispose finalises any open recording, aborts playback and releases the
// connection when the deck owns it. It is safe to call more than once.
func (d *Deck) Dispose(ctx context.Context, pauseDevice bool) error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return nil
	}
	d.disposed = true
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()

	if d.rec.Recording() {
		if _, err := d.rec.Stop(ctx); err != nil {
			d.logger.Warn("finalising recording on dispose failed", zap.Error(err))
		}
	}
	d.player.Stop(pauseDevice)

	if unsubscribe != nil {
		unsubscribe()
	}

	if d.owned && d.conn != nil {
		d.logger.Debug("closing owned connection")
		return d.conn.Close()
	}
	return nil
}
