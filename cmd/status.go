package cmd

import (
	"fmt"

	"github.com/audiolibrelab/liveexport/internal/exporter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the connection to Ableton Live",
	Long: `Probe AbletonOSC and report the current tempo and track count.
Exits with code 2 when Live does not answer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialClient()
		if err != nil {
			return err
		}
		defer client.Close()

		status := exporter.CheckConnection(client)
		if !status.Connected {
			return &connectivityError{err: fmt.Errorf("%s", status.Message)}
		}

		fmt.Println(status.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
