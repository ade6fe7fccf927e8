package deck

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tessro/rewind/internal/core"
	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/replay"
	"github.com/tessro/rewind/internal/timeline"
)

type fakeConn struct {
	deviceID string

	mu     sync.Mutex
	snap   *core.Snapshot
	subs   map[int]func(*core.Snapshot)
	nextID int
	closed int
	plays  []string
	pauses int
}

func newFakeConn(deviceID string) *fakeConn {
	return &fakeConn{deviceID: deviceID, subs: map[int]func(*core.Snapshot){}}
}

func (f *fakeConn) Subscribe(fn func(*core.Snapshot)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeConn) emit(snap *core.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	var fns []func(*core.Snapshot)
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (f *fakeConn) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeConn) CurrentSnapshot(context.Context) (*core.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Clone(), nil
}

func (f *fakeConn) PlayTrack(_ context.Context, _, trackID string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, trackID)
	return nil
}

func (f *fakeConn) Pause(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeConn) TransferToDevice(context.Context, string) error { return nil }

func (f *fakeConn) DeviceID() string { return f.deviceID }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func dialer(conn *fakeConn) DialFunc {
	return func(context.Context) (core.Connection, error) { return conn, nil }
}

func TestOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("wrapped connection stays open", func(t *testing.T) {
		conn := newFakeConn("dev")
		d := Wrap(conn)
		if err := d.Dispose(ctx, false); err != nil {
			t.Fatalf("Dispose() error = %v", err)
		}
		if conn.closeCount() != 0 {
			t.Errorf("Close() called %d times, want 0", conn.closeCount())
		}
		if conn.subscribers() != 0 {
			t.Errorf("subscribers = %d, want 0", conn.subscribers())
		}
	})

	t.Run("dialled connection is closed once", func(t *testing.T) {
		conn := newFakeConn("dev")
		d, err := Dial(ctx, dialer(conn))
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		_ = d.Dispose(ctx, false)
		_ = d.Dispose(ctx, false)
		if conn.closeCount() != 1 {
			t.Errorf("Close() called %d times, want 1", conn.closeCount())
		}
	})

	t.Run("dial failure", func(t *testing.T) {
		want := errors.New("no route")
		_, err := Dial(ctx, func(context.Context) (core.Connection, error) { return nil, want })
		if !errors.Is(err, want) {
			t.Errorf("Dial() error = %v, want %v", err, want)
		}
	})
}

func TestRecordThenReplay(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	conn := newFakeConn("dev")

	finished := make(chan replay.Outcome, 1)
	d := Wrap(conn, WithClock(clock), WithCallbacks(replay.Callbacks{
		OnFinish: func(o replay.Outcome, _ error) { finished <- o },
	}))
	defer d.Dispose(ctx, false)

	if err := d.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}

	clock.Advance(1500 * time.Millisecond)
	conn.emit(&core.Snapshot{TrackID: "A", IsPlayable: true})
	clock.Advance(2 * time.Second)
	conn.emit(&core.Snapshot{TrackID: "A", PositionMs: 2000, IsPaused: true, IsPlayable: true})

	tl, err := d.StopRecording(ctx)
	if err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	want := timeline.Timeline{
		timeline.Silence(0, 1500),
		timeline.Track("A", 1500, 2000, 0, 2000),
	}
	if len(tl) != len(want) || tl[0] != want[0] || tl[1] != want[1] {
		t.Fatalf("timeline = %v, want %v", tl, want)
	}

	if err := d.Play(ctx, nil); err != nil {
		t.Fatalf("Play(nil) error = %v", err)
	}

	clock.BlockUntil(1)
	clock.Advance(1500 * time.Millisecond)
	clock.BlockUntil(1)
	clock.Advance(2 * time.Second)

	select {
	case o := <-finished:
		if o != replay.OutcomeCompleted {
			t.Errorf("outcome = %v, want completed", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for replay")
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.plays) != 1 || conn.plays[0] != "A" {
		t.Errorf("plays = %v, want [A]", conn.plays)
	}
}

func TestExclusion(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	conn := newFakeConn("dev")
	d := Wrap(conn, WithClock(clock))
	defer d.Dispose(ctx, false)

	_ = d.StartRecording(ctx)
	if err := d.Play(ctx, timeline.Timeline{timeline.Silence(0, 1000)}); !errors.Is(err, rwerrors.ErrInvalidState) {
		t.Errorf("Play() while recording error = %v, want ErrInvalidState", err)
	}
	_, _ = d.StopRecording(ctx)

	if err := d.Play(ctx, timeline.Timeline{timeline.Silence(0, 1000)}); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := d.StartRecording(ctx); !errors.Is(err, rwerrors.ErrInvalidState) {
		t.Errorf("StartRecording() while replaying error = %v, want ErrInvalidState", err)
	}

	d.StopPlayback(false)
	if d.PlayerState() != replay.StateIdle {
		t.Errorf("PlayerState() = %v, want idle", d.PlayerState())
	}
	if err := d.StartRecording(ctx); err != nil {
		t.Errorf("StartRecording() after stop error = %v", err)
	}
}

func TestAccessorsWaitForDeckLock(t *testing.T) {
	tests := []struct {
		name string
		call func(d *Deck)
	}{
		{"StopPlayback", func(d *Deck) { d.StopPlayback(false) }},
		{"Recording", func(d *Deck) { d.Recording() }},
		{"Elapsed", func(d *Deck) { d.Elapsed() }},
		{"Timeline", func(d *Deck) { d.Timeline() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Wrap(newFakeConn("dev"), WithClock(clockwork.NewFakeClock()))
			defer d.Dispose(context.Background(), false)

			d.mu.Lock()
			done := make(chan struct{})
			go func() {
				tt.call(d)
				close(done)
			}()

			select {
			case <-done:
				t.Errorf("%s() returned while the deck was locked", tt.name)
			case <-time.After(50 * time.Millisecond):
			}

			d.mu.Unlock()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatalf("%s() did not return after unlock", tt.name)
			}
		})
	}
}

func TestDeviceNotReady(t *testing.T) {
	ctx := context.Background()
	d := Wrap(newFakeConn(""))

	if err := d.StartRecording(ctx); !errors.Is(err, rwerrors.ErrDeviceNotReady) {
		t.Errorf("StartRecording() error = %v, want ErrDeviceNotReady", err)
	}
	if err := d.Play(ctx, nil); !errors.Is(err, rwerrors.ErrDeviceNotReady) {
		t.Errorf("Play() error = %v, want ErrDeviceNotReady", err)
	}
}

func TestDisposeFinalisesRecording(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	conn := newFakeConn("dev")
	d := Wrap(conn, WithClock(clock))

	_ = d.StartRecording(ctx)
	clock.Advance(time.Second)

	if err := d.Dispose(ctx, true); err != nil {
		t.Fatalf("Dispose() error = %v", err)
	}
	if d.Recording() {
		t.Error("Recording() = true after Dispose")
	}
	if got := d.Timeline(); len(got) != 1 || got[0] != timeline.Silence(0, 1000) {
		t.Errorf("Timeline() = %v, want one second of silence", got)
	}
	if err := d.StartRecording(ctx); !errors.Is(err, rwerrors.ErrInvalidState) {
		t.Errorf("StartRecording() after Dispose error = %v, want ErrInvalidState", err)
	}
}
