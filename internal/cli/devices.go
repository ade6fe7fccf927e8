package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tessro/rewind/internal/core"
	"github.com/tessro/rewind/internal/spotify/connect"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available playback devices",
	Long:  `Lists the Spotify Connect devices that can be recorded from or replayed to.`,
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := spotifyClient(ctx)
	if err != nil {
		return err
	}

	devices, err := connect.ListDevices(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to get devices: %w", err)
	}

	if JSONOutput() {
		if devices == nil {
			devices = []core.Device{}
		}
		printJSON(devices)
		return nil
	}

	if len(devices) == 0 {
		fmt.Println("No devices found. Make sure Spotify is open on at least one device.")
		return nil
	}

	configured := deviceArg("")
	table := NewTable("", "NAME", "TYPE", "VOLUME", "ID")
	for _, d := range devices {
		name := d.Name
		if configured != "" && (configured == d.ID || configured == d.Name) {
			name += " (default)"
		}
		table.Row(StatusIcon(d.IsActive), name, string(d.Type), volumeLabel(d.Volume), d.ID)
	}
	table.Flush()

	return nil
}

func volumeLabel(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v) + "%"
}
