package cmd

import (
	"fmt"
	"time"

	"github.com/audiolibrelab/liveexport/internal/automation"
	"github.com/audiolibrelab/liveexport/internal/exporter"
	"github.com/audiolibrelab/liveexport/internal/session"

	"github.com/spf13/cobra"
)

var (
	exportTrackIndex int
	exportTrackName  string
	exportGroupName  string
	exportSelected   bool
	exportFilename   string
	exportStart      float64
	exportLength     float64
	exportOutputDir  string
	exportDelay      time.Duration
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracks through Live's export dialog",
	Long: `Export one track or a whole group by driving Live's Export
Audio/Video dialog. The target is one of --track, --name, --group or
--selected. Group exports render each unmuted child with audio in turn,
sharing one loop range so the stems stay aligned.

Requires macOS: the dialog is driven through System Events, which needs
accessibility permission for the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateExportTarget(); err != nil {
			return err
		}
		if err := requireAutomation(); err != nil {
			return err
		}

		rng, err := exportRange(cmd)
		if err != nil {
			return err
		}

		client, err := dialClient()
		if err != nil {
			return err
		}
		defer client.Close()
		if err := requireConnection(client); err != nil {
			return err
		}

		if exportOutputDir != "" {
			cfg.Output.Directory = exportOutputDir
		}
		if cmd.Flags().Changed("delay") {
			cfg.Automation.ExportDelay = exportDelay
		}
		exp := newExporter(client, session.ViewArrangement)
		ctx := cmd.Context()

		if exportGroupName != "" {
			results, err := exp.ExportGroup(ctx, exportGroupName, rng)
			printResults(results)
			if err != nil {
				return err
			}
			if summary := exporter.Summarize(results); summary.Failed > 0 {
				return fmt.Errorf("%d of %d exports failed", summary.Failed, summary.Total)
			}
			return nil
		}

		var result exporter.Result
		switch {
		case exportSelected:
			result = exp.ExportSelected(ctx, exportFilename)
		case exportTrackName != "":
			result = exp.ExportTrackByName(ctx, exportTrackName, exportFilename, rng)
		default:
			result = exp.ExportTrackIndex(ctx, exportTrackIndex, exportFilename, rng)
		}
		printResults([]exporter.Result{result})
		if !result.Success {
			return fmt.Errorf("export failed: %s", result.Message)
		}
		return nil
	},
}

func validateExportTarget() error {
	targets := 0
	if exportTrackIndex >= 0 {
		targets++
	}
	if exportTrackName != "" {
		targets++
	}
	if exportGroupName != "" {
		targets++
	}
	if exportSelected {
		targets++
	}
	if targets != 1 {
		return fmt.Errorf("exactly one of --track, --name, --group or --selected is required")
	}
	if exportGroupName != "" && exportFilename != "" {
		return fmt.Errorf("--filename cannot be combined with --group, group exports name each stem automatically")
	}
	return nil
}

// exportRange builds the dialog render range from --start/--length. Both
// flags must be given together; the values are bars, matching the fields of
// the export dialog.
func exportRange(cmd *cobra.Command) (*automation.RenderRange, error) {
	startSet := cmd.Flags().Changed("start")
	lengthSet := cmd.Flags().Changed("length")
	if startSet != lengthSet {
		return nil, fmt.Errorf("--start and --length must be given together")
	}
	if !startSet {
		return nil, nil
	}
	if exportLength <= 0 {
		return nil, fmt.Errorf("--length must be positive, got %v", exportLength)
	}
	return &automation.RenderRange{Start: exportStart, Length: exportLength}, nil
}

func printResults(results []exporter.Result) {
	if len(results) == 0 {
		return
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		detail := r.Filename
		if !r.Success {
			status = "FAILED"
			detail = r.Message
			if r.FailedStep != "" {
				detail = fmt.Sprintf("after %s: %s", r.FailedStep, r.Message)
			}
		}
		rows = append(rows, []string{r.TrackName, status, detail})
	}
	fmt.Println(renderTable(
		[]string{"TRACK", "STATUS", "RESULT"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
}

func init() {
	exportCmd.Flags().IntVarP(&exportTrackIndex, "track", "t", -1, "track index to export")
	exportCmd.Flags().StringVarP(&exportTrackName, "name", "n", "", "export the first track whose name matches")
	exportCmd.Flags().StringVarP(&exportGroupName, "group", "g", "", "export every track of the named group")
	exportCmd.Flags().BoolVar(&exportSelected, "selected", false, "export the currently selected track")
	exportCmd.Flags().StringVarP(&exportFilename, "filename", "f", "", "filename without extension (default is derived from track and group names)")
	exportCmd.Flags().Float64Var(&exportStart, "start", 0, "dialog render range start in bars")
	exportCmd.Flags().Float64Var(&exportLength, "length", 0, "dialog render range length in bars")
	exportCmd.Flags().StringVarP(&exportOutputDir, "output", "o", "", "output directory (overrides config)")
	exportCmd.Flags().DurationVar(&exportDelay, "delay", 2*time.Second, "settle delay between exports of a batch (overrides config)")
	rootCmd.AddCommand(exportCmd)
}
