package cmd

import (
	"fmt"
	"strconv"

	"github.com/audiolibrelab/liveexport/internal/session"

	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find [text]",
	Short: "Find tracks by name",
	Long:  `List every track whose name contains the given text (case-insensitive).`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialClient()
		if err != nil {
			return err
		}
		defer client.Close()
		if err := requireConnection(client); err != nil {
			return err
		}

		analyzer := session.NewAnalyzer(client, session.ViewArrangement)
		if err := analyzer.Refresh(); err != nil {
			return err
		}

		matches := analyzer.FindTracks(args[0])
		if len(matches) == 0 {
			return fmt.Errorf("no track matching %q", args[0])
		}

		rows := make([][]string, 0, len(matches))
		for _, t := range matches {
			rows = append(rows, []string{
				strconv.Itoa(t.Index),
				t.Name,
				trackKind(t),
				muteLabel(t.Muted),
				audioRangeLabel(t),
			})
		}
		fmt.Println(renderTable(
			[]string{"#", "NAME", "TYPE", "MUTED", "AUDIO RANGE"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
		))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
}
