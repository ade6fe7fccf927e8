package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/rewind/internal/replay"
	"github.com/tessro/rewind/internal/timeline"
)

var playDevice string

var playCmd = &cobra.Command{
	Use:   "play <id|file>",
	Short: "Replay a recording",
	Long: `Replays a saved recording, or a timeline JSON file, on a Spotify Connect
device with the original timing. Ctrl+C stops the replay and pauses the device.`,
	Example: `  rewind play 3f2a
  rewind play session.json --device "Kitchen"`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVarP(&playDevice, "device", "d", "", "device name or ID (default: config, then the active device)")
	rootCmd.AddCommand(playCmd)
}

type playResult struct {
	outcome replay.Outcome
	err     error
}

func loadTimeline(cmd *cobra.Command, ref string) (string, timeline.Timeline, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		tl, err := readTimelineFile(ref)
		return ref, tl, err
	}

	st, err := openStore()
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = st.Close() }()

	rec, err := st.Get(cmd.Context(), ref)
	if err != nil {
		return "", nil, err
	}
	return rec.Name, rec.Timeline, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	name, tl, err := loadTimeline(cmd, args[0])
	if err != nil {
		return err
	}

	// live is set before Play starts the player goroutine and never after.
	var live *tea.Program

	done := make(chan playResult, 1)
	cb := replay.Callbacks{
		OnSegment: func(i int, seg timeline.Segment) {
			switch {
			case live != nil:
				live.Send(segmentMsg{index: i, seg: seg})
			case !JSONOutput():
				fmt.Println(segmentLine(i, seg))
			}
		},
		OnAuthError: func(err error) {
			logger.Error("replay lost authorization", zap.Error(err))
		},
		OnError: func(err error) {
			logger.Error("replay failed", zap.Error(err))
		},
		OnFinish: func(o replay.Outcome, err error) {
			select {
			case done <- playResult{outcome: o, err: err}:
			default:
			}
			if live != nil {
				go live.Send(finishMsg{outcome: o, err: err})
			}
		},
	}

	d, err := openDeck(cmd.Context(), playDevice, cb)
	if err != nil {
		return err
	}
	defer func() { _ = d.Dispose(context.Background(), false) }()

	sigCtx, stop := signalContext(cmd.Context())
	defer stop()

	if !JSONOutput() {
		fmt.Printf("%s %s on %s %s\n",
			titleStyle.Render("Replaying"), name, d.DeviceID(),
			dimStyle.Render(fmt.Sprintf("(%d segments, %s)", len(tl), FormatDuration(tl.Duration()))))
	}

	interactive := canInteract()
	if interactive {
		live = tea.NewProgram(newPlayModel(d.Player(), len(tl)))
	}

	if err := d.Play(cmd.Context(), tl); err != nil {
		return err
	}

	var res playResult
	if interactive {
		if _, err := runLive(sigCtx, live); err != nil {
			logger.Warn("live view failed", zap.Error(err))
		}
		select {
		case res = <-done:
		default:
			d.StopPlayback(true)
			res = <-done
		}
	} else {
		select {
		case res = <-done:
		case <-sigCtx.Done():
			d.StopPlayback(true)
			res = <-done
		}
	}

	if JSONOutput() {
		out := map[string]any{"name": name, "outcome": res.outcome.String()}
		if res.err != nil {
			out["error"] = res.err.Error()
		}
		printJSON(out)
	} else {
		switch res.outcome {
		case replay.OutcomeCompleted:
			fmt.Println(trackStyle.Render("Replay complete."))
		case replay.OutcomeStopped:
			fmt.Println(dimStyle.Render("Replay stopped."))
		case replay.OutcomeAborted:
			fmt.Fprintln(os.Stderr, errorStyle.Render("Replay aborted."))
		}
	}

	if res.outcome == replay.OutcomeAborted {
		return fmt.Errorf("replay aborted: %w", res.err)
	}
	return nil
}
