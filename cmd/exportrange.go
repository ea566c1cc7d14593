package cmd

import (
	"fmt"
	"strconv"

	"github.com/audiolibrelab/liveexport/internal/session"

	"github.com/spf13/cobra"
)

var rangeCmd = &cobra.Command{
	Use:   "range [start-beats] [length-beats]",
	Short: "Set the loop range Live renders when exporting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("start must be a number of beats, got %q", args[0])
		}
		length, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("length must be a number of beats, got %q", args[1])
		}
		if length <= 0 {
			return fmt.Errorf("length must be positive, got %v", length)
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
		msg, err := exp.SetRange(start, length)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rangeCmd)
}
