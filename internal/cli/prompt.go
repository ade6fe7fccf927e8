package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/tessro/rewind/internal/core"
	"github.com/tessro/rewind/internal/spotify/client"
	"github.com/tessro/rewind/internal/spotify/connect"
)

// canInteract reports whether prompts can be shown.
func canInteract() bool {
	return !JSONOutput() &&
		term.IsTerminal(int(os.Stdout.Fd())) &&
		term.IsTerminal(int(os.Stdin.Fd()))
}

func deviceOptions(devices []core.Device) []huh.Option[string] {
	options := make([]huh.Option[string], 0, len(devices))
	for _, d := range devices {
		label := d.Name
		if d.Type != "" {
			label = fmt.Sprintf("%s (%s)", d.Name, d.Type)
		}
		if d.IsActive {
			label += " [active]"
		}
		options = append(options, huh.NewOption(label, d.ID))
	}
	return options
}

// promptDevice shows a device picker and returns the chosen device.
func promptDevice(title string, devices []core.Device) (*core.Device, error) {
	var selectedID string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(deviceOptions(devices)...).
				Value(&selectedID),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("selection cancelled: %w", err)
	}

	for i := range devices {
		if devices[i].ID == selectedID {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no device selected")
}

// chooseDevice returns the device flag to dial. With nothing configured,
// several devices online and none active, it asks the user when it can.
func chooseDevice(ctx context.Context, c *client.Client, flag string) (string, error) {
	if arg := deviceArg(flag); arg != "" || !canInteract() {
		return arg, nil
	}

	devices, err := connect.ListDevices(ctx, c)
	if err != nil {
		return "", err
	}
	if len(devices) < 2 {
		return "", nil
	}
	for _, d := range devices {
		if d.IsActive {
			return "", nil
		}
	}

	dev, err := promptDevice("Select a device", devices)
	if err != nil {
		return "", err
	}
	return dev.ID, nil
}

// confirm asks a yes/no question. Without a terminal it returns def.
func confirm(question string, def bool) (bool, error) {
	if !canInteract() {
		return def, nil
	}
	answer := def
	err := huh.NewConfirm().
		Title(question).
		Affirmative("Yes").
		Negative("No").
		Value(&answer).
		Run()
	return answer, err
}
