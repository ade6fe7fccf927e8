package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"

	"github.com/tessro/rewind/internal/core"
	"github.com/tessro/rewind/internal/replay"
	"github.com/tessro/rewind/internal/timeline"
)

type stubSession struct {
	elapsed time.Duration
	tl      timeline.Timeline
}

func (s stubSession) Elapsed() time.Duration      { return s.elapsed }
func (s stubSession) Timeline() timeline.Timeline { return s.tl }

type stubProgress struct {
	index    int
	seg      timeline.Segment
	active   bool
	position int
	duration int
}

func (s stubProgress) CurrentIndex() int                        { return s.index }
func (s stubProgress) CurrentSegment() (timeline.Segment, bool) { return s.seg, s.active }
func (s stubProgress) CurrentPosition() int                     { return s.position }
func (s stubProgress) Duration() int                            { return s.duration }

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestRecordModel(t *testing.T) {
	var tl timeline.Timeline
	for i := 0; i < 7; i++ {
		tl = append(tl, timeline.Track("spotify:track:"+string(rune('a'+i)), int64(i)*1000, 1000, 0, 1000))
	}
	m := newRecordModel(stubSession{elapsed: 42 * time.Second, tl: tl}, "dev-1")

	next, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Error("tick did not schedule the next tick")
	}
	view := next.View()

	for _, want := range []string{"Recording", "dev-1", "0:42.0", "7 segments closed", "spotify:track:g"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "spotify:track:b") {
		t.Errorf("View() shows more than %d recent segments:\n%s", recentSegments, view)
	}

	tests := []struct {
		name string
		msg  tea.Msg
	}{
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
		{"q", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}},
		{"stop", stopMsg{}},
	}
	for _, tt := range tests {
		done, cmd := next.Update(tt.msg)
		if !isQuit(cmd) {
			t.Errorf("Update(%s) did not quit", tt.name)
		}
		if v := done.View(); v != "" {
			t.Errorf("View() after %s = %q, want empty", tt.name, v)
		}
	}

	if _, cmd := next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}); cmd != nil {
		t.Error("Update(x) returned a command")
	}
}

func TestPlayModelView(t *testing.T) {
	track := timeline.Track("spotify:track:a", 0, 5000, 1000, 6000)

	tests := []struct {
		name     string
		progress stubProgress
		want     []string
	}{
		{
			"waiting",
			stubProgress{index: -1},
			[]string{"Waiting for the first segment"},
		},
		{
			"track",
			stubProgress{index: 0, seg: track, active: true, position: 2000, duration: 200000},
			[]string{"spotify:track:a", "segment 1/2", "0:02.0", "3:20.0", "from 0:01.0 to 0:06.0", "━"},
		},
		{
			"silence",
			stubProgress{index: 1, seg: timeline.Silence(5000, 2000), active: true},
			[]string{"silence", "segment 2/2", "0:02.0 of quiet"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newPlayModel(tt.progress, 2).Update(tickMsg(time.Now()))
			view := m.View()
			for _, want := range tt.want {
				if !strings.Contains(view, want) {
					t.Errorf("View() missing %q:\n%s", want, view)
				}
			}
		})
	}
}

func TestPlayModelEvents(t *testing.T) {
	seg := timeline.Track("spotify:track:a", 0, 5000, 0, 5000)
	m := newPlayModel(stubProgress{index: 0, seg: seg, active: true, duration: 5000}, 1)

	next, cmd := m.Update(segmentMsg{index: 0, seg: seg})
	if cmd == nil {
		t.Error("segment did not print a line")
	}
	if pm := next.(playModel); pm.index != 0 || !pm.active {
		t.Errorf("after segment index = %d active = %v, want 0 true", pm.index, pm.active)
	}

	done, cmd := next.Update(finishMsg{outcome: replay.OutcomeCompleted})
	if !isQuit(cmd) {
		t.Error("finish did not quit")
	}
	pm := done.(playModel)
	if !pm.finished || pm.interrupted || pm.outcome != replay.OutcomeCompleted {
		t.Errorf("after finish = %+v", pm)
	}

	stopped, cmd := next.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !isQuit(cmd) || !stopped.(playModel).interrupted {
		t.Error("ctrl+c did not interrupt the replay view")
	}
}

type nopSink struct{}

func (nopSink) PlayTrack(context.Context, string, string, int) error { return nil }
func (nopSink) Pause(context.Context, string) error                 { return nil }
func (nopSink) TransferToDevice(context.Context, string) error      { return nil }

func TestPlayModelReadsPlayer(t *testing.T) {
	started := make(chan int, 4)
	p := replay.New(nopSink{}, "dev-1",
		replay.WithClock(clockwork.NewFakeClock()),
		replay.WithCallbacks(replay.Callbacks{
			OnSegment: func(i int, _ timeline.Segment) { started <- i },
		}))

	tl := timeline.Timeline{
		timeline.Track("spotify:track:a", 0, 5000, 1000, 6000),
		timeline.Silence(5000, 2000),
	}
	if err := p.Play(context.Background(), tl); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	defer p.Stop(false)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first segment")
	}
	p.Observe(&core.Snapshot{TrackID: "spotify:track:a", PositionMs: 2000, DurationMs: 200000, IsPlayable: true})

	m, _ := newPlayModel(p, len(tl)).Update(tickMsg(time.Now()))
	view := m.View()
	for _, want := range []string{"spotify:track:a", "segment 1/2", "0:02.0", "3:20.0"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent      float64
		filled, rest int
	}{
		{50, 5, 5},
		{0, 0, 10},
		{150, 10, 0},
		{-5, 0, 10},
	}

	for _, tt := range tests {
		bar := progressBar(tt.percent, 10)
		if got := strings.Count(bar, "━"); got != tt.filled {
			t.Errorf("progressBar(%v) filled = %d, want %d", tt.percent, got, tt.filled)
		}
		if got := strings.Count(bar, "─"); got != tt.rest {
			t.Errorf("progressBar(%v) empty = %d, want %d", tt.percent, got, tt.rest)
		}
	}
}
