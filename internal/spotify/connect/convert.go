package connect

import (
	"time"

	"github.com/tessro/rewind/internal/core"
	"github.com/tessro/rewind/internal/spotify/client"
)

// convertSnapshot maps a playback state to a snapshot of deviceID. A state
// for another device, or no state at all, is reported as no session.
func convertSnapshot(state *client.PlaybackState, deviceID string) *core.Snapshot {
	if state == nil {
		return nil
	}
	if deviceID != "" && state.Device.ID != "" && state.Device.ID != deviceID {
		return nil
	}

	snap := &core.Snapshot{
		PositionMs: state.ProgressMS,
		IsPaused:   !state.IsPlaying,
		IsPlayable: true,
	}
	if state.Item != nil {
		snap.TrackID = state.Item.URI
		snap.DurationMs = state.Item.DurationMS
		snap.IsPlayable = state.Item.Playable()
		snap.Track = convertTrack(state.Item)
	}
	return snap
}

// convertTrack converts a Spotify track to a core track.
func convertTrack(t *client.Track) *core.Track {
	if t == nil {
		return nil
	}

	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	artist := ""
	if len(artists) > 0 {
		artist = artists[0]
	}

	return &core.Track{
		ID:       t.ID,
		URI:      t.URI,
		Title:    t.Name,
		Artist:   artist,
		Artists:  artists,
		Album:    t.Album.Name,
		Duration: time.Duration(t.DurationMS) * time.Millisecond,
	}
}

// convertDevice converts a Spotify device to a core device.
func convertDevice(d *client.Device) core.Device {
	deviceType := core.DeviceType(d.Type)
	switch d.Type {
	case "Computer":
		deviceType = core.DeviceTypeComputer
	case "Smartphone":
		deviceType = core.DeviceTypePhone
	case "Speaker":
		deviceType = core.DeviceTypeSpeaker
	case "TV":
		deviceType = core.DeviceTypeTV
	}

	return core.Device{
		ID:           d.ID,
		Name:         d.Name,
		Type:         deviceType,
		IsActive:     d.IsActive,
		IsRestricted: d.IsRestricted,
		Volume:       d.VolumePercent,
	}
}
