package core

import "time"

// Track represents a playable audio track.
type Track struct {
	ID       string        `json:"id"`
	URI      string        `json:"uri"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist"`
	Artists  []string      `json:"artists"`
	Album    string        `json:"album"`
	Duration time.Duration `json:"duration"`
}

// Label returns "Artist - Title", or the URI when metadata is missing.
func (t *Track) Label() string {
	if t == nil {
		return ""
	}
	if t.Title == "" {
		return t.URI
	}
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
