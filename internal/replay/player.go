// Package replay drives a remote device through a recorded timeline.
package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/core"
	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/timeline"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second

	pauseTimeout = 5 * time.Second
)

// State is the player's coarse state.
type State int

const (
	StateIdle State = iota
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	default:
		return "idle"
	}
}

// Outcome tells how a replay session ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeStopped
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeStopped:
		return "stopped"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Callbacks receive asynchronous replay events. Any of them may be nil.
// Credential failures go to OnAuthError, other aborts to OnError.
type Callbacks struct {
	OnAuthError func(err error)
	OnError     func(err error)
	OnSegment   func(index int, seg timeline.Segment)
	OnFinish    func(outcome Outcome, err error)
}

// Option configures a Player.
type Option func(*Player)

// WithClock sets the clock used for segment and backoff timers.
func WithClock(c clockwork.Clock) Option {
	return func(p *Player) { p.clock = c }
}

// WithMaxAttempts bounds the start attempts per track segment.
func WithMaxAttempts(n int) Option {
	return func(p *Player) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithBackoff sets the base retry delay. Attempt k waits base*k.
func WithBackoff(base time.Duration) Option {
	return func(p *Player) {
		if base >= 0 {
			p.backoff = base
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithCallbacks sets the event callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(p *Player) { p.cb = cb }
}

// Player replays one timeline at a time on a single device.
type Player struct {
	sink        core.ControlSink
	deviceID    string
	clock       clockwork.Clock
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
	cb          Callbacks

	mu     sync.Mutex
	state  State
	epoch  uint64
	cancel context.CancelFunc
	queue  timeline.Timeline
	index  int
	last   *core.Snapshot
}

// New creates a player commanding deviceID through sink.
func New(sink core.ControlSink, deviceID string, opts ...Option) *Player {
	p := &Player{
		sink:        sink,
		deviceID:    deviceID,
		clock:       clockwork.NewRealClock(),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      zap.NewNop(),
		index:       -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play starts replaying tl in the background. The timeline is copied.
// Cancelling ctx stops the replay like Stop(false).
func (p *Player) Play(ctx context.Context, tl timeline.Timeline) error {
	if p.sink == nil || p.deviceID == "" {
		return rwerrors.ErrDeviceNotReady
	}

	p.mu.Lock()
	if p.state == StatePlaying {
		p.mu.Unlock()
		return rwerrors.ErrInvalidState
	}

	if len(tl) == 0 {
		p.mu.Unlock()
		p.logger.Info("empty timeline, nothing to replay")
		p.notifyFinish(OutcomeCompleted, nil)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.epoch++
	epoch := p.epoch
	p.state = StatePlaying
	p.cancel = cancel
	p.queue = tl.Clone()
	p.index = -1
	queue := p.queue
	p.mu.Unlock()

	p.logger.Info("replay started",
		zap.Int("segments", len(queue)),
		zap.Duration("duration", queue.Duration()))

	go p.run(runCtx, epoch, queue)
	return nil
}

// Stop aborts the current replay. When pause is set the device is paused
// on a best-effort basis. Stop is a no-op while idle.
func (p *Player) Stop(pause bool) {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	p.epoch++
	p.reset()
	p.mu.Unlock()

	p.logger.Info("replay stopped")

	if pause {
		ctx, cancel := context.WithTimeout(context.Background(), pauseTimeout)
		defer cancel()
		if err := p.sink.Pause(ctx, p.deviceID); err != nil {
			p.logger.Warn("pause after stop failed", zap.Error(err))
		}
	}

	p.notifyFinish(OutcomeStopped, nil)
}

// Observe records the latest device snapshot and warns when the device
// diverges from the segment being replayed.
func (p *Player) Observe(snap *core.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = snap.Clone()

	seg, ok := p.currentLocked()
	if !ok || !seg.IsTrack() || !snap.HasTrack() {
		return
	}
	if snap.TrackID != seg.TrackID {
		p.logger.Warn("device diverged from replay",
			zap.Int("segment", p.index),
			zap.String("expected", seg.TrackID),
			zap.String("actual", snap.TrackID))
	}
}

// State returns the current player state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentSegment returns the segment being replayed.
func (p *Player) CurrentSegment() (timeline.Segment, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

// CurrentIndex returns the index of the active segment, or -1.
func (p *Player) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// CurrentPosition returns the in-track position reported by the device.
func (p *Player) CurrentPosition() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return 0
	}
	return p.last.PositionMs
}

// Duration returns the length of the track the device reports.
func (p *Player) Duration() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return 0
	}
	return p.last.DurationMs
}

func (p *Player) currentLocked() (timeline.Segment, bool) {
	if p.state != StatePlaying || p.index < 0 || p.index >= len(p.queue) {
		return timeline.Segment{}, false
	}
	return p.queue[p.index], true
}

// reset must be called with mu held.
func (p *Player) reset() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state = StateIdle
	p.queue = nil
	p.index = -1
}

func (p *Player) run(ctx context.Context, epoch uint64, queue timeline.Timeline) {
	for i, seg := range queue {
		if !p.advance(epoch, i) {
			return
		}
		if p.cb.OnSegment != nil {
			p.cb.OnSegment(i, seg)
		}

		switch seg.Kind {
		case timeline.KindSilence:
			p.logger.Debug("silence", zap.Int("segment", i), zap.Int64("duration_ms", seg.DurationMs))
			if err := p.wait(ctx, seg.Duration()); err != nil {
				p.finish(epoch, OutcomeStopped, nil)
				return
			}

		case timeline.KindTrack:
			if seg.TrackID == "" {
				p.logger.Warn("skipping track segment without id", zap.Int("segment", i))
				continue
			}

			if err := p.startTrack(ctx, seg); err != nil {
				if ctx.Err() != nil {
					p.finish(epoch, OutcomeStopped, nil)
				} else {
					p.finish(epoch, OutcomeAborted, err)
				}
				return
			}

			if err := p.wait(ctx, seg.Duration()); err != nil {
				p.finish(epoch, OutcomeStopped, nil)
				return
			}

			if err := p.sink.Pause(ctx, p.deviceID); err != nil {
				p.logger.Warn("pause at segment end failed", zap.Int("segment", i), zap.Error(err))
			}

		default:
			p.logger.Warn("skipping segment of unknown type", zap.Int("segment", i), zap.String("type", string(seg.Kind)))
		}
	}

	p.finish(epoch, OutcomeCompleted, nil)
}

// startTrack transfers playback to the device and starts the segment's
// track, retrying not-found and transient failures.
func (p *Player) startTrack(ctx context.Context, seg timeline.Segment) error {
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = p.sink.TransferToDevice(ctx, p.deviceID)
		if err == nil {
			err = p.sink.PlayTrack(ctx, p.deviceID, seg.TrackID, int(seg.TrackStartMs))
		}
		if err == nil {
			p.logger.Debug("track started",
				zap.String("track", seg.TrackID),
				zap.Int64("position_ms", seg.TrackStartMs),
				zap.Int("attempt", attempt))
			return nil
		}

		if errors.Is(err, rwerrors.ErrAuth) || ctx.Err() != nil {
			return err
		}

		p.logger.Warn("track start failed",
			zap.String("track", seg.TrackID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Error(err))

		if attempt < p.maxAttempts {
			if werr := p.wait(ctx, p.backoff*time.Duration(attempt)); werr != nil {
				return werr
			}
		}
	}
	return err
}

// wait blocks for d or until ctx is done.
func (p *Player) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := p.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return ctx.Err()
	}
}

// advance moves to segment i if epoch is still the active session.
func (p *Player) advance(epoch uint64, i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.epoch != epoch || p.state != StatePlaying {
		return false
	}
	p.index = i
	return true
}

// finish ends the session identified by epoch. A session superseded by
// Stop or a newer Play is left alone.
func (p *Player) finish(epoch uint64, outcome Outcome, err error) {
	p.mu.Lock()
	if p.epoch != epoch || p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	p.reset()
	p.mu.Unlock()

	switch outcome {
	case OutcomeAborted:
		p.logger.Error("replay aborted", zap.Error(err))
		if errors.Is(err, rwerrors.ErrAuth) {
			if p.cb.OnAuthError != nil {
				p.cb.OnAuthError(err)
			}
		} else if p.cb.OnError != nil {
			p.cb.OnError(err)
		}
	case OutcomeCompleted:
		p.logger.Info("replay completed")
	}

	p.notifyFinish(outcome, err)
}

func (p *Player) notifyFinish(outcome Outcome, err error) {
	if p.cb.OnFinish != nil {
		p.cb.OnFinish(outcome, err)
	}
}
