package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/replay"
	"github.com/tessro/rewind/internal/store"
	"github.com/tessro/rewind/internal/timeline"
)

var (
	recordName   string
	recordDevice string
	recordOutput string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a listening session",
	Long: `Records what the device plays until interrupted with Ctrl+C, then saves the
session. Pauses and gaps are kept as silence so the replay has the same timing.`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordName, "name", "n", "", "name for the recording")
	recordCmd.Flags().StringVarP(&recordDevice, "device", "d", "", "device name or ID (default: config, then the active device)")
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "also write the timeline as JSON to this file")
	rootCmd.AddCommand(recordCmd)
}

func runRecord(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	d, err := openDeck(cmd.Context(), recordDevice, replay.Callbacks{})
	if err != nil {
		return err
	}
	defer func() { _ = d.Dispose(context.Background(), false) }()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if err := d.StartRecording(ctx); err != nil {
		return err
	}
	logger.Info("recording started", zap.String("device", d.DeviceID()))

	switch {
	case canInteract():
		p := tea.NewProgram(newRecordModel(d, d.DeviceID()))
		if _, err := runLive(ctx, p); err != nil {
			logger.Warn("live view failed", zap.Error(err))
			<-ctx.Done()
		}
	case !JSONOutput():
		fmt.Printf("%s on %s. Press Ctrl+C to stop.\n", titleStyle.Render("Recording"), d.DeviceID())
		<-ctx.Done()
	default:
		<-ctx.Done()
	}

	// The signal context may be done; finish with a fresh one.
	tl, err := d.StopRecording(context.Background())
	if err != nil {
		return fmt.Errorf("failed to finish recording: %w", err)
	}

	rec, err := st.Save(context.Background(), recordName, tl)
	if err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}

	if recordOutput != "" {
		if err := writeTimelineFile(recordOutput, tl); err != nil {
			return err
		}
	}

	if JSONOutput() {
		printJSON(newRecordingView(rec))
		return nil
	}

	fmt.Printf("Saved %s %s\n", titleStyle.Render(rec.Name), dimStyle.Render(shortID(rec.ID)))
	printTimeline(os.Stdout, tl)
	return nil
}

func writeTimelineFile(path string, tl timeline.Timeline) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := timeline.Encode(f, tl); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// recordingView is the JSON shape of a saved recording.
type recordingView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Segments   int               `json:"segments"`
	DurationMs int64             `json:"duration_ms"`
	Timeline   timeline.Timeline `json:"timeline,omitempty"`
}

func newRecordingView(r *store.Recording) recordingView {
	return recordingView{
		ID:         r.ID,
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Segments:   r.Segments,
		DurationMs: r.Duration.Milliseconds(),
		Timeline:   r.Timeline,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
