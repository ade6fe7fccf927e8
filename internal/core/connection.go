package core

import "context"

// StateSource delivers playback snapshots of a single device.
type StateSource interface {
	// Subscribe registers fn for every state reading, steady ones included.
	// Notifications arrive in chronological order. The returned func
	// removes the subscription.
	Subscribe(fn func(*Snapshot)) (unsubscribe func())

	// CurrentSnapshot fetches a fresh reading.
	CurrentSnapshot(ctx context.Context) (*Snapshot, error)
}

// ControlSink commands a remote playback device.
// Failures wrap one of errors.ErrAuth, errors.ErrNotFound or errors.ErrTransient.
type ControlSink interface {
	PlayTrack(ctx context.Context, deviceID, trackID string, positionMs int) error
	Pause(ctx context.Context, deviceID string) error
	TransferToDevice(ctx context.Context, deviceID string) error
}

// Connection is a live link to one addressable playback device.
type Connection interface {
	StateSource
	ControlSink

	// DeviceID returns the addressable device, or "" when not ready.
	DeviceID() string

	Close() error
}
