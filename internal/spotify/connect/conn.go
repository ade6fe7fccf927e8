// Package connect exposes a Spotify Connect device as a core.Connection.
package connect

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/core"
	"github.com/tessro/rewind/internal/spotify/client"
)

const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultSeekTolerance = 2 * time.Second
)

// Option configures a Conn.
type Option func(*Conn)

// WithPollInterval sets how often the device state is read.
func WithPollInterval(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithSeekTolerance sets how far the position may stray from the
// expected one before it counts as a seek.
func WithSeekTolerance(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.tolerance = d
		}
	}
}

// WithClock sets the clock driving the poll ticker.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Conn) { c.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// Conn drives one Spotify Connect device over the Web API and publishes
// its state by polling.
type Conn struct {
	client    *client.Client
	deviceID  string
	interval  time.Duration
	tolerance time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger

	start  sync.Once
	stop   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	subs   map[int]func(*core.Snapshot)
	nextID int
}

// New connects to deviceID. Polling starts with the first subscription.
func New(c *client.Client, deviceID string, opts ...Option) *Conn {
	conn := &Conn{
		client:    c,
		deviceID:  deviceID,
		interval:  DefaultPollInterval,
		tolerance: DefaultSeekTolerance,
		clock:     clockwork.NewRealClock(),
		logger:    zap.NewNop(),
		done:      make(chan struct{}),
		subs:      make(map[int]func(*core.Snapshot)),
	}
	for _, opt := range opts {
		opt(conn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn.cancel = cancel
	conn.ctx = ctx

	conn.logger.Debug("connected", zap.String("device", deviceID))
	return conn
}

func (c *Conn) startPolling() {
	c.start.Do(func() {
		p := &poller{
			fetch:     c.CurrentSnapshot,
			notify:    c.publish,
			clock:     c.clock,
			interval:  c.interval,
			tolerance: c.tolerance,
			logger:    c.logger,
		}
		go func() {
			defer close(c.done)
			p.run(c.ctx)
		}()
		c.logger.Debug("polling started", zap.Duration("interval", c.interval))
	})
}

// Subscribe registers fn for every successful poll. Notifications are delivered
// in order from the polling goroutine.
func (c *Conn) Subscribe(fn func(*core.Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.startPolling()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Conn) publish(snap *core.Snapshot) {
	c.mu.Lock()
	fns := make([]func(*core.Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap.Clone())
	}
}

// CurrentSnapshot reads the device state now.
func (c *Conn) CurrentSnapshot(ctx context.Context) (*core.Snapshot, error) {
	state, err := c.client.GetPlaybackState(ctx)
	if err != nil {
		return nil, err
	}
	return convertSnapshot(state, c.deviceID), nil
}

// PlayTrack starts trackID at positionMs on deviceID.
func (c *Conn) PlayTrack(ctx context.Context, deviceID, trackID string, positionMs int) error {
	return c.client.Play(ctx, deviceID, &client.PlayOptions{
		URIs:       []string{trackID},
		PositionMS: positionMs,
	})
}

// Pause pauses deviceID.
func (c *Conn) Pause(ctx context.Context, deviceID string) error {
	return c.client.Pause(ctx, deviceID)
}

// TransferToDevice makes deviceID the active device without starting
// playback.
func (c *Conn) TransferToDevice(ctx context.Context, deviceID string) error {
	return c.client.TransferPlayback(ctx, deviceID, false)
}

// DeviceID returns the device this connection drives.
func (c *Conn) DeviceID() string {
	return c.deviceID
}

// Close stops polling. It is safe to call more than once.
func (c *Conn) Close() error {
	c.stop.Do(func() {
		c.cancel()
		started := true
		c.start.Do(func() { started = false })
		if started {
			<-c.done
		}
		c.logger.Debug("connection closed", zap.String("device", c.deviceID))
	})
	return nil
}

var _ core.Connection = (*Conn)(nil)
