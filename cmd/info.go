package cmd

import (
	"fmt"
	"strconv"

	"github.com/audiolibrelab/liveexport/internal/session"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [track-index]",
	Short: "Show export naming info for a track",
	Long: `Show the metadata used to name an export of the given track: the
containing group, the musical key and BPM parsed from the names, and the
suggested filename.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("track index must be a number, got %q", args[0])
		}

		client, err := dialClient()
		if err != nil {
			return err
		}
		defer client.Close()
		if err := requireConnection(client); err != nil {
			return err
		}

		exp := newExporter(client, session.ViewArrangement)
		info, err := exp.ExportInfo(index)
		if err != nil {
			return err
		}

		fmt.Printf("track: %s\n", info.TrackName)
		if info.GroupName != "" {
			fmt.Printf("group: %s\n", info.GroupName)
		}
		if info.Key != "" {
			fmt.Printf("key: %s\n", info.Key)
		}
		fmt.Printf("bpm: %d\n", info.BPM)
		fmt.Printf("suggested_filename: %s.%s\n", info.SuggestedFilename, cfg.Output.Format)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
