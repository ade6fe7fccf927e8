package connect

import (
	"context"
	"fmt"
	"strings"

	"github.com/tessro/rewind/internal/core"
	rwerrors "github.com/tessro/rewind/internal/errors"
	"github.com/tessro/rewind/internal/spotify/client"
)

// ListDevices returns the user's available playback devices.
func ListDevices(ctx context.Context, c *client.Client) ([]core.Device, error) {
	devices, err := c.GetDevices(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]core.Device, len(devices))
	for i := range devices {
		result[i] = convertDevice(&devices[i])
	}
	return result, nil
}

// ResolveDevice picks the device named by idOrName (an exact id, or a
// case-insensitive name). An empty idOrName selects the active device, or
// the only device when just one is available.
func ResolveDevice(ctx context.Context, c *client.Client, idOrName string) (*core.Device, error) {
	devices, err := ListDevices(ctx, c)
	if err != nil {
		return nil, err
	}
	return pickDevice(devices, idOrName)
}

func pickDevice(devices []core.Device, idOrName string) (*core.Device, error) {
	if idOrName != "" {
		for i := range devices {
			if devices[i].ID == idOrName {
				return &devices[i], nil
			}
		}
		for i := range devices {
			if strings.EqualFold(devices[i].Name, idOrName) {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("%w: no device matches %q", rwerrors.ErrDeviceNotReady, idOrName)
	}

	for i := range devices {
		if devices[i].IsActive {
			return &devices[i], nil
		}
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no Spotify devices are online", rwerrors.ErrDeviceNotReady)
	}
	return nil, rwerrors.WithSuggestion(
		fmt.Errorf("%w: %d devices online and none active", rwerrors.ErrDeviceNotReady, len(devices)),
		"Pick one with --device, or run 'rewind config set-device'")
}

// Dialer returns a function that resolves idOrName and connects to it.
// It matches deck.DialFunc.
func Dialer(c *client.Client, idOrName string, opts ...Option) func(ctx context.Context) (core.Connection, error) {
	return func(ctx context.Context) (core.Connection, error) {
		dev, err := ResolveDevice(ctx, c, idOrName)
		if err != nil {
			return nil, err
		}
		return New(c, dev.ID, opts...), nil
	}
}
