package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessro/rewind/internal/recorder"
	"github.com/tessro/rewind/internal/timeline"
)

var (
	importName string
	deleteYes  bool
)

var recordingsCmd = &cobra.Command{
	Use:     "recordings",
	Aliases: []string{"recs"},
	Short:   "Manage saved recordings",
	Long:    `Commands for listing, inspecting and moving saved recordings.`,
}

var recordingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved recordings",
	Args:  cobra.NoArgs,
	RunE:  runRecordingsList,
}

var recordingsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the segments of a recording",
	Long:  `Shows every segment of a recording. IDs may be abbreviated to any unique prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordingsShow,
}

var recordingsExportCmd = &cobra.Command{
	Use:   "export <id> [file]",
	Short: "Write a recording's timeline as JSON",
	Long:  `Writes the timeline as a JSON array of segments to file, or to stdout.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runRecordingsExport,
}

var recordingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Save a JSON timeline as a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordingsImport,
}

var recordingsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a recording",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecordingsRename,
}

var recordingsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a recording",
	Args:    cobra.ExactArgs(1),
	RunE:    runRecordingsDelete,
}

func init() {
	recordingsImportCmd.Flags().StringVarP(&importName, "name", "n", "", "name for the recording (default: file name)")
	recordingsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip confirmation")

	recordingsCmd.AddCommand(recordingsListCmd)
	recordingsCmd.AddCommand(recordingsShowCmd)
	recordingsCmd.AddCommand(recordingsExportCmd)
	recordingsCmd.AddCommand(recordingsImportCmd)
	recordingsCmd.AddCommand(recordingsRenameCmd)
	recordingsCmd.AddCommand(recordingsDeleteCmd)
	rootCmd.AddCommand(recordingsCmd)
}

func runRecordingsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	recs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}

	if JSONOutput() {
		views := make([]recordingView, 0, len(recs))
		for i := range recs {
			views = append(views, newRecordingView(&recs[i]))
		}
		printJSON(views)
		return nil
	}

	if len(recs) == 0 {
		fmt.Println("No recordings yet. Run 'rewind record' to make one.")
		return nil
	}

	table := NewTable("ID", "NAME", "SEGMENTS", "LENGTH", "CREATED")
	for _, r := range recs {
		table.Row(shortID(r.ID), TruncateString(r.Name, 40), strconv.Itoa(r.Segments),
			FormatDuration(r.Duration), FormatAge(r.CreatedAt))
	}
	table.Flush()
	return nil
}

func runRecordingsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rec, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if JSONOutput() {
		printJSON(newRecordingView(rec))
		return nil
	}

	fmt.Printf("%s %s\n", titleStyle.Render(rec.Name), dimStyle.Render(rec.ID))
	fmt.Printf("%s\n\n", dimStyle.Render("recorded "+FormatAge(rec.CreatedAt)))
	printTimeline(os.Stdout, rec.Timeline)
	return nil
}

func runRecordingsExport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rec, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return timeline.Encode(os.Stdout, rec.Timeline)
	}
	if err := writeTimelineFile(args[1], rec.Timeline); err != nil {
		return err
	}
	if !JSONOutput() {
		fmt.Printf("Exported %s to %s\n", rec.Name, args[1])
	}
	return nil
}

// readTimelineFile decodes and validates a JSON timeline.
func readTimelineFile(path string) (timeline.Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	tl, err := timeline.Decode(f)
	if err != nil {
		return nil, err
	}
	if err := tl.Validate(recorder.DefaultSilenceThreshold); err != nil {
		return nil, fmt.Errorf("invalid timeline in %s: %w", path, err)
	}
	return tl, nil
}

func runRecordingsImport(cmd *cobra.Command, args []string) error {
	tl, err := readTimelineFile(args[0])
	if err != nil {
		return err
	}

	name := importName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rec, err := st.Save(cmd.Context(), name, tl)
	if err != nil {
		return err
	}

	if JSONOutput() {
		printJSON(newRecordingView(rec))
	} else {
		fmt.Printf("Imported %s %s (%d segments)\n", rec.Name, dimStyle.Render(shortID(rec.ID)), rec.Segments)
	}
	return nil
}

func runRecordingsRename(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Rename(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	if JSONOutput() {
		printJSON(map[string]string{"status": "renamed", "id": args[0], "name": args[1]})
	} else {
		fmt.Printf("Renamed %s to %s\n", args[0], args[1])
	}
	return nil
}

func runRecordingsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	rec, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if !deleteYes {
		ok, err := confirm(fmt.Sprintf("Delete %q?", rec.Name), true)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("cancelled")
		}
	}

	if err := st.Delete(cmd.Context(), rec.ID); err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}

	if JSONOutput() {
		printJSON(map[string]string{"status": "deleted", "id": rec.ID})
	} else {
		fmt.Printf("Deleted %s\n", rec.Name)
	}
	return nil
}
