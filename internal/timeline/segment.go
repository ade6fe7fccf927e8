// Package timeline holds the segment model shared by recording and replay.
package timeline

import (
	"fmt"
	"time"
)

// Kind distinguishes the two segment variants.
type Kind string

const (
	KindSilence Kind = "silence"
	KindTrack   Kind = "track"
)

// Segment is a contiguous slice of a recorded session.
// TrackID, TrackStartMs and TrackEndMs are only meaningful for KindTrack.
// TrackEndMs need not equal TrackStartMs+DurationMs: a seek during the
// segment moves the in-track position independently of wall-clock time.
type Segment struct {
	Kind           Kind   `json:"type"`
	SessionStartMs int64  `json:"sessionStartMs"`
	DurationMs     int64  `json:"durationMs"`
	TrackID        string `json:"trackId,omitempty"`
	TrackStartMs   int64  `json:"trackStartMs,omitempty"`
	TrackEndMs     int64  `json:"trackEndMs,omitempty"`
}

// Silence returns a silence segment.
func Silence(startMs, durationMs int64) Segment {
	return Segment{Kind: KindSilence, SessionStartMs: startMs, DurationMs: durationMs}
}

// Track returns a track segment.
func Track(trackID string, startMs, durationMs, trackStartMs, trackEndMs int64) Segment {
	return Segment{
		Kind:           KindTrack,
		SessionStartMs: startMs,
		DurationMs:     durationMs,
		TrackID:        trackID,
		TrackStartMs:   trackStartMs,
		TrackEndMs:     trackEndMs,
	}
}

// IsTrack returns true for a track segment.
func (s Segment) IsTrack() bool {
	return s.Kind == KindTrack
}

// EndMs returns the session offset at which the segment ends.
func (s Segment) EndMs() int64 {
	return s.SessionStartMs + s.DurationMs
}

// Duration returns DurationMs as a time.Duration.
func (s Segment) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

func (s Segment) String() string {
	if s.IsTrack() {
		return fmt.Sprintf("track %s @%dms for %dms (in-track %d-%dms)",
			s.TrackID, s.SessionStartMs, s.DurationMs, s.TrackStartMs, s.TrackEndMs)
	}
	return fmt.Sprintf("silence @%dms for %dms", s.SessionStartMs, s.DurationMs)
}
