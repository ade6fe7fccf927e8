// Package recorder turns a stream of playback snapshots into a timeline of
// track and silence segments.
package recorder

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/core"
	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/timeline"
)

// DefaultSilenceThreshold is the shortest silence kept as its own segment.
const DefaultSilenceThreshold = 50 * time.Millisecond

// phase is the recorder's state. Exactly one of idle, recordingSilence or
// recordingTrack is active at a time.
type phase interface {
	isPhase()
}

type idle struct{}

type recordingSilence struct {
	since int64 // session offset, ms
}

type recordingTrack struct {
	trackID      string
	trackStartMs int64
	since        int64
}

func (idle) isPhase()             {}
func (recordingSilence) isPhase() {}
func (recordingTrack) isPhase()   {}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the clock used for session offsets.
func WithClock(c clockwork.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithSilenceThreshold sets the noise floor for silence segments.
func WithSilenceThreshold(d time.Duration) Option {
	return func(r *Recorder) {
		if d >= 0 {
			r.threshold = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// Recorder captures a single session at a time.
type Recorder struct {
	source    core.StateSource
	clock     clockwork.Clock
	threshold time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	phase    phase
	master   time.Time
	segments timeline.Timeline
	last     *core.Snapshot
}

// New creates a recorder reading from source.
func New(source core.StateSource, opts ...Option) *Recorder {
	r := &Recorder{
		source:    source,
		clock:     clockwork.NewRealClock(),
		threshold: DefaultSilenceThreshold,
		logger:    zap.NewNop(),
		phase:     idle{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins a new session, discarding any previous timeline.
func (r *Recorder) Start(ctx context.Context) error {
	if r.source == nil {
		return rwerrors.ErrDeviceNotReady
	}
	if r.Recording() {
		return rwerrors.ErrInvalidState
	}

	snap, err := r.source.CurrentSnapshot(ctx)
	if err != nil {
		r.logger.Warn("initial snapshot unavailable, starting in silence", zap.Error(err))
		snap = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.phase.(idle); !ok {
		return rwerrors.ErrInvalidState
	}

	r.master = r.clock.Now()
	r.segments = nil
	r.last = snap.Clone()

	if snap.Progressing() {
		r.phase = recordingTrack{trackID: snap.TrackID, trackStartMs: int64(snap.PositionMs)}
		r.logger.Info("recording started", zap.String("track", snap.TrackID), zap.Int("position_ms", snap.PositionMs))
	} else {
		r.phase = recordingSilence{}
		r.logger.Info("recording started in silence")
	}
	return nil
}

// Observe feeds a state notification into the recorder. It is a no-op
// while idle apart from remembering the snapshot.
func (r *Recorder) Observe(snap *core.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.last
	r.last = snap.Clone()

	now := r.offsetMs()

	switch p := r.phase.(type) {
	case idle:
		return

	case recordingTrack:
		if snap.Progressing() && snap.TrackID == p.trackID {
			return
		}

		endPos := p.trackStartMs
		switch {
		case snap.SameTrack(p.trackID):
			endPos = int64(snap.PositionMs)
		case prev.SameTrack(p.trackID):
			endPos = int64(prev.PositionMs)
		}
		r.closeTrack(p, now, endPos)

		if snap.Progressing() {
			r.phase = recordingTrack{trackID: snap.TrackID, trackStartMs: int64(snap.PositionMs), since: now}
			r.logTrack(snap, now)
		} else {
			r.phase = recordingSilence{since: now}
		}

	case recordingSilence:
		if !snap.Progressing() {
			return
		}

		since := p.since
		if r.closeSilence(p, now) {
			since = now
		}
		r.phase = recordingTrack{trackID: snap.TrackID, trackStartMs: int64(snap.PositionMs), since: since}
		r.logTrack(snap, since)
	}
}

func (r *Recorder) logTrack(snap *core.Snapshot, at int64) {
	r.logger.Info("track",
		zap.String("track", snap.TrackID),
		zap.String("label", snap.Track.Label()),
		zap.Int("position_ms", snap.PositionMs),
		zap.Int64("at_ms", at))
}

// Stop finalises the session and returns the timeline. Calling Stop while
// idle returns the last timeline unchanged.
func (r *Recorder) Stop(ctx context.Context) (timeline.Timeline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.offsetMs()

	switch p := r.phase.(type) {
	case idle:
		return r.segments.Clone(), nil

	case recordingTrack:
		endPos := p.trackStartMs
		fresh, err := r.source.CurrentSnapshot(ctx)
		switch {
		case err == nil && fresh.SameTrack(p.trackID):
			endPos = int64(fresh.PositionMs)
		case r.last.SameTrack(p.trackID):
			endPos = int64(r.last.PositionMs)
			r.logger.Debug("using last snapshot for final position", zap.Error(err))
		default:
			r.logger.Warn("final position unknown, using track start",
				zap.String("track", p.trackID), zap.Error(err))
		}
		r.closeTrack(p, now, endPos)

	case recordingSilence:
		r.closeSilence(p, now)
	}

	r.phase = idle{}
	r.logger.Info("recording stopped",
		zap.Int("segments", len(r.segments)),
		zap.Int64("duration_ms", now))

	return r.segments.Clone(), nil
}

// Timeline returns a copy of the segments recorded so far.
func (r *Recorder) Timeline() timeline.Timeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.segments.Clone()
}

// Recording returns true while a session is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.phase.(idle)
	return !ok
}

// Elapsed returns the session clock. After Stop it is the recorded length.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.phase.(idle); ok {
		return r.segments.Duration()
	}
	return r.clock.Since(r.master)
}

// offsetMs must be called with mu held.
func (r *Recorder) offsetMs() int64 {
	return r.clock.Since(r.master).Milliseconds()
}

// closeTrack emits the open track segment ending at now. Zero-length
// segments are dropped; the next segment starts at the same boundary.
func (r *Recorder) closeTrack(p recordingTrack, now, endPos int64) {
	dur := now - p.since
	if dur <= 0 {
		r.logger.Debug("dropping zero-length track segment", zap.String("track", p.trackID))
		return
	}
	seg := timeline.Track(p.trackID, p.since, dur, p.trackStartMs, endPos)
	r.segments = append(r.segments, seg)
	r.logger.Debug("segment closed", zap.Stringer("segment", seg))
}

// closeSilence emits a silence segment when it reaches the threshold and
// reports whether it did.
func (r *Recorder) closeSilence(p recordingSilence, now int64) bool {
	dur := now - p.since
	if dur < r.threshold.Milliseconds() || dur <= 0 {
		return false
	}
	seg := timeline.Silence(p.since, dur)
	r.segments = append(r.segments, seg)
	r.logger.Debug("segment closed", zap.Stringer("segment", seg))
	return true
}
