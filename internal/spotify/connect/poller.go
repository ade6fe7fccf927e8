package connect

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/core"
)

// poller reads the device state on a fixed interval and reports every
// successful reading.
type poller struct {
	fetch     func(ctx context.Context) (*core.Snapshot, error)
	notify    func(*core.Snapshot)
	clock     clockwork.Clock
	interval  time.Duration
	tolerance time.Duration
	logger    *zap.Logger
}

// run polls until ctx is done. Steady readings are reported too, so
// subscribers always see the latest position of the current track.
func (p *poller) run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		prev   *core.Snapshot
		prevAt time.Time
		primed bool
	)

	poll := func() {
		curr, err := p.fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Debug("poll failed", zap.Error(err))
			}
			return
		}

		now := p.clock.Now()
		if primed && changed(prev, curr, now.Sub(prevAt), p.tolerance) {
			p.logger.Debug("state changed", zap.String("track", trackOf(curr)))
		}
		prev, prevAt, primed = curr, now, true
		p.notify(curr)
	}

	poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			poll()
		}
	}
}

// changed reports whether curr differs from prev in a way that matters
// for segment boundaries: session presence, track, paused or playable
// flags, or a position jump that elapsed time does not explain.
func changed(prev, curr *core.Snapshot, elapsed, tolerance time.Duration) bool {
	if prev == nil || curr == nil {
		return prev != curr
	}
	if prev.TrackID != curr.TrackID || prev.IsPaused != curr.IsPaused || prev.IsPlayable != curr.IsPlayable {
		return true
	}

	expected := int64(prev.PositionMs)
	if !prev.IsPaused {
		expected += elapsed.Milliseconds()
	}
	drift := int64(curr.PositionMs) - expected
	if drift < 0 {
		drift = -drift
	}
	return drift > tolerance.Milliseconds()
}

func trackOf(s *core.Snapshot) string {
	if s == nil {
		return ""
	}
	return s.TrackID
}
