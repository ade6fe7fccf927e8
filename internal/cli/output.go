package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tessro/rewind/internal/timeline"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	trackStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	silenceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Table provides a simple table formatter.
type Table struct {
	w *tabwriter.Writer
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return NewTableWriter(os.Stdout, headers...)
}

// NewTableWriter creates a table writing to a specific writer.
func NewTableWriter(out io.Writer, headers ...string) *Table {
	t := &Table{
		w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0),
	}
	if len(headers) > 0 {
		_, _ = t.w.Write([]byte(strings.Join(headers, "\t") + "\n"))
	}
	return t
}

// Row adds a row to the table.
func (t *Table) Row(values ...string) {
	_, _ = t.w.Write([]byte(strings.Join(values, "\t") + "\n"))
}

// Flush writes the table output.
func (t *Table) Flush() {
	_ = t.w.Flush()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// StatusIcon returns an icon for the given boolean status.
func StatusIcon(active bool) string {
	if active {
		return "●"
	}
	return "○"
}

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// FormatDuration formats d as m:ss.t, or h:mm:ss past an hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	tenths := (ms % 1000) / 100

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d.%d", m, s, tenths)
}

func formatMs(ms int64) string {
	return FormatDuration(time.Duration(ms) * time.Millisecond)
}

// FormatAge renders t relative to now, e.g. "3 hours ago".
func FormatAge(t time.Time) string {
	return humanize.Time(t)
}

// segmentLine renders one segment for humans.
func segmentLine(i int, seg timeline.Segment) string {
	at := dimStyle.Render(fmt.Sprintf("%3d  %s", i+1, formatMs(seg.SessionStartMs)))
	if seg.IsTrack() {
		return fmt.Sprintf("%s  %s %s  %s",
			at,
			trackStyle.Render("▶"),
			seg.TrackID,
			dimStyle.Render(fmt.Sprintf("%s → %s (%s)",
				formatMs(seg.TrackStartMs), formatMs(seg.TrackEndMs), formatMs(seg.DurationMs))))
	}
	return fmt.Sprintf("%s  %s", at, silenceStyle.Render("… silence "+formatMs(seg.DurationMs)))
}

func printTimeline(w io.Writer, tl timeline.Timeline) {
	for i, seg := range tl {
		_, _ = fmt.Fprintln(w, segmentLine(i, seg))
	}
	_, _ = fmt.Fprintf(w, "%s\n", dimStyle.Render(fmt.Sprintf("%d segments, %d tracks, %s",
		len(tl), tl.Tracks(), FormatDuration(tl.Duration()))))
}
