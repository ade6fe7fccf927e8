package client

import (
	"context"
	"net/http"
)

// GetCurrentUser returns the current user's profile.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var user User
	if _, err := c.Get(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetDevices returns the user's available playback devices.
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var resp DevicesResponse
	if _, err := c.Get(ctx, "/me/player/devices", &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// GetPlaybackState returns the current playback state, or nil when the
// user has no active session.
func (c *Client) GetPlaybackState(ctx context.Context) (*PlaybackState, error) {
	var state PlaybackState
	status, err := c.Get(ctx, "/me/player", &state)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &state, nil
}
