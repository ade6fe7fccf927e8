package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Timeline is the ordered segment list produced by one recording session.
type Timeline []Segment

// Clone returns a copy of t. A nil timeline clones to an empty one.
func (t Timeline) Clone() Timeline {
	out := make(Timeline, len(t))
	copy(out, t)
	return out
}

// Duration returns the session length covered by t.
func (t Timeline) Duration() time.Duration {
	if len(t) == 0 {
		return 0
	}
	return time.Duration(t[len(t)-1].EndMs()) * time.Millisecond
}

// Tracks returns the number of track segments.
func (t Timeline) Tracks() int {
	n := 0
	for _, s := range t {
		if s.IsTrack() {
			n++
		}
	}
	return n
}

// Validate checks contiguity, non-negative fields, track identity and the
// silence noise floor. All violations are reported together.
func (t Timeline) Validate(noiseFloor time.Duration) error {
	var errs []error
	floor := noiseFloor.Milliseconds()

	for i, s := range t {
		switch s.Kind {
		case KindTrack:
			if s.TrackID == "" {
				errs = append(errs, fmt.Errorf("segment %d: track without id", i))
			}
			if s.TrackStartMs < 0 || s.TrackEndMs < 0 {
				errs = append(errs, fmt.Errorf("segment %d: negative in-track position", i))
			}
		case KindSilence:
			if s.DurationMs < floor {
				errs = append(errs, fmt.Errorf("segment %d: silence of %dms is below the %dms floor", i, s.DurationMs, floor))
			}
		default:
			errs = append(errs, fmt.Errorf("segment %d: unknown type %q", i, s.Kind))
		}

		if s.SessionStartMs < 0 || s.DurationMs < 0 {
			errs = append(errs, fmt.Errorf("segment %d: negative offset or duration", i))
		}
		if i > 0 && t[i-1].EndMs() != s.SessionStartMs {
			errs = append(errs, fmt.Errorf("segment %d: starts at %dms, previous ends at %dms", i, s.SessionStartMs, t[i-1].EndMs()))
		}
	}

	return errors.Join(errs...)
}

// Encode writes t as a JSON array.
func Encode(w io.Writer, t Timeline) error {
	if t == nil {
		t = Timeline{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

// Decode reads a JSON array written by Encode.
func Decode(r io.Reader) (Timeline, error) {
	var t Timeline
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode timeline: %w", err)
	}
	for i, s := range t {
		if s.Kind != KindTrack && s.Kind != KindSilence {
			return nil, fmt.Errorf("segment %d: unknown type %q", i, s.Kind)
		}
	}
	return t, nil
}
