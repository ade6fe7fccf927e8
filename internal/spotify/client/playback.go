package client

import "context"

// PlayOptions configures a play request.
type PlayOptions struct {
	URIs       []string `json:"uris,omitempty"`
	PositionMS int      `json:"position_ms,omitempty"`
}

// Play starts playback of opts on deviceID.
// If deviceID is empty, uses the currently active device.
func (c *Client) Play(ctx context.Context, deviceID string, opts *PlayOptions) error {
	path := "/me/player/play"
	if deviceID != "" {
		path = BuildURL(path, map[string]string{"device_id": deviceID})
	}
	// Spotify requires a JSON body even for resume
	body := opts
	if body == nil {
		body = &PlayOptions{}
	}
	_, err := c.Put(ctx, path, body, nil)
	return err
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	path := "/me/player/pause"
	if deviceID != "" {
		path = BuildURL(path, map[string]string{"device_id": deviceID})
	}
	_, err := c.Put(ctx, path, nil, nil)
	return err
}

// TransferPlayback transfers playback to a different device.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	body := map[string]any{
		"device_ids": []string{deviceID},
		"play":       play,
	}
	_, err := c.Put(ctx, "/me/player", body, nil)
	return err
}
