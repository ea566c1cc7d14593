package cmd

import (
	"fmt"
	"strconv"

	"github.com/audiolibrelab/liveexport/internal/session"

	"github.com/spf13/cobra"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare [track-index]",
	Short: "Select a track and match the loop range to its audio",
	Long: `Select the given track and set Live's loop range to cover its
arrangement clips, so a following export renders exactly that audio.`,
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
		msg, err := exp.Prepare(index)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}
