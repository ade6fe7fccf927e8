package core

// Snapshot is a point-in-time reading of a playback device.
// A nil *Snapshot means the device reports no active session.
type Snapshot struct {
	TrackID    string `json:"track_id"`
	PositionMs int    `json:"position_ms"`
	DurationMs int    `json:"duration_ms"`
	IsPaused   bool   `json:"is_paused"`
	IsPlayable bool   `json:"is_playable"`

	// Track carries display metadata when the source has it. It never
	// participates in segment boundaries.
	Track *Track `json:"track,omitempty"`
}

// Progressing returns true if a playable track is audibly advancing.
func (s *Snapshot) Progressing() bool {
	return s != nil && s.TrackID != "" && !s.IsPaused && s.IsPlayable
}

// HasTrack returns true if the snapshot names a track, playing or not.
func (s *Snapshot) HasTrack() bool {
	return s != nil && s.TrackID != ""
}

// SameTrack reports whether the snapshot refers to trackID.
func (s *Snapshot) SameTrack(trackID string) bool {
	return s != nil && trackID != "" && s.TrackID == trackID
}

// Clone returns a copy that shares no mutable state with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Track != nil {
		t := *s.Track
		t.Artists = append([]string(nil), s.Track.Artists...)
		c.Track = &t
	}
	return &c
}
