package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/rewind/internal/replay"
	"github.com/tessro/rewind/internal/timeline"
)

const (
	liveRefresh    = 250 * time.Millisecond
	recentSegments = 5
)

type tickMsg time.Time

// segmentMsg reports a segment the player has started.
type segmentMsg struct {
	index int
	seg   timeline.Segment
}

// finishMsg reports the end of a replay.
type finishMsg struct {
	outcome replay.Outcome
	err     error
}

// stopMsg ends a live view from outside, e.g. on SIGTERM.
type stopMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(liveRefresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func isQuitKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return true
	}
	return false
}

// runLive runs p until it quits or ctx is done and returns the final model.
// An interrupt is not an error; the caller inspects the model instead.
func runLive(ctx context.Context, p *tea.Program) (tea.Model, error) {
	go func() {
		<-ctx.Done()
		p.Send(stopMsg{})
	}()

	m, err := p.Run()
	if errors.Is(err, tea.ErrInterrupted) {
		err = nil
	}
	return m, err
}

// sessionClock is what the record view reads from the deck.
type sessionClock interface {
	Elapsed() time.Duration
	Timeline() timeline.Timeline
}

// recordModel shows a running recording until the user stops it.
type recordModel struct {
	rec      sessionClock
	device   string
	spinner  spinner.Model
	elapsed  time.Duration
	segments timeline.Timeline
	done     bool
}

func newRecordModel(rec sessionClock, device string) recordModel {
	return recordModel{
		rec:    rec,
		device: device,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(errorStyle)),
	}
}

func (m recordModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m recordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if isQuitKey(msg) {
			m.done = true
			return m, tea.Quit
		}
	case stopMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		m.elapsed = m.rec.Elapsed()
		m.segments = m.rec.Timeline()
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m recordModel) View() string {
	if m.done {
		return ""
	}

	lines := []string{
		fmt.Sprintf("%s %s on %s  %s",
			m.spinner.View(), titleStyle.Render("Recording"), m.device,
			dimStyle.Render(FormatDuration(m.elapsed))),
	}

	first := len(m.segments) - recentSegments
	if first < 0 {
		first = 0
	}
	for i := first; i < len(m.segments); i++ {
		lines = append(lines, segmentLine(i, m.segments[i]))
	}

	lines = append(lines, "", dimStyle.Render(fmt.Sprintf("%d segments closed · q to stop and save", len(m.segments))))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// replayProgress is what the play view reads from the player.
type replayProgress interface {
	CurrentIndex() int
	CurrentSegment() (timeline.Segment, bool)
	CurrentPosition() int
	Duration() int
}

// playModel shows the segment being replayed and prints each segment
// above the view as it starts.
type playModel struct {
	player replayProgress
	total  int
	width  int

	index      int
	seg        timeline.Segment
	active     bool
	positionMs int
	durationMs int

	finished    bool
	interrupted bool
	outcome     replay.Outcome
	err         error
}

func newPlayModel(p replayProgress, total int) playModel {
	return playModel{player: p, total: total, index: -1}
}

func (m playModel) Init() tea.Cmd {
	return tick()
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if isQuitKey(msg) {
			m.interrupted = true
			return m, tea.Quit
		}
	case stopMsg:
		m.interrupted = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case segmentMsg:
		m = m.refresh()
		return m, tea.Println(segmentLine(msg.index, msg.seg))
	case finishMsg:
		m.finished = true
		m.outcome, m.err = msg.outcome, msg.err
		return m, tea.Quit
	case tickMsg:
		return m.refresh(), tick()
	}
	return m, nil
}

func (m playModel) refresh() playModel {
	m.index = m.player.CurrentIndex()
	m.seg, m.active = m.player.CurrentSegment()
	m.positionMs = m.player.CurrentPosition()
	m.durationMs = m.player.Duration()
	return m
}

func (m playModel) View() string {
	if m.finished || m.interrupted {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		"",
		m.nowPlaying(),
		"",
		dimStyle.Render("q to stop and pause the device"))
}

func (m playModel) nowPlaying() string {
	if !m.active {
		return dimStyle.Render("Waiting for the first segment")
	}

	counter := dimStyle.Render(fmt.Sprintf("segment %d/%d", m.index+1, m.total))
	if !m.seg.IsTrack() {
		return lipgloss.JoinVertical(lipgloss.Left,
			silenceStyle.Render("… silence")+"  "+counter,
			"  "+dimStyle.Render(formatMs(m.seg.DurationMs)+" of quiet"))
	}

	barWidth := 30
	if m.width > 0 {
		barWidth = max(m.width-30, 10)
	}
	progress := fmt.Sprintf("%s %s %s",
		formatMs(int64(m.positionMs)),
		progressBar(percentOf(m.positionMs, m.durationMs), barWidth),
		formatMs(int64(m.durationMs)))

	return lipgloss.JoinVertical(lipgloss.Left,
		trackStyle.Render("▶")+" "+titleStyle.Render(m.seg.TrackID)+"  "+counter,
		"  "+dimStyle.Render(fmt.Sprintf("from %s to %s", formatMs(m.seg.TrackStartMs), formatMs(m.seg.TrackEndMs))),
		"",
		progress)
}

func percentOf(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = min(max(filled, 0), width)
	return trackStyle.Render(strings.Repeat("━", filled)) +
		dimStyle.Render(strings.Repeat("─", width-filled))
}
