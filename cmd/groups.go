package cmd

import (
	"fmt"
	"strconv"

	"github.com/audiolibrelab/liveexport/internal/session"

	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List the group tracks of the open set",
	Long: `List every group track together with how many of its children
would actually render in a group export (unmuted tracks with clips).`,
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

		groups := analyzer.Groups()
		if len(groups) == 0 {
			fmt.Println("No group tracks in the open set.")
			return nil
		}

		rows := make([][]string, 0, len(groups))
		for _, g := range groups {
			rows = append(rows, []string{
				strconv.Itoa(g.Track.Index),
				g.Track.Name,
				strconv.Itoa(len(g.Children)),
				strconv.Itoa(len(g.EnabledTracksWithAudio())),
				groupRangeLabel(g),
			})
		}
		fmt.Println(renderTable(
			[]string{"#", "GROUP", "TRACKS", "EXPORTABLE", "AUDIO RANGE"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
		))
		return nil
	},
}

func groupRangeLabel(g session.Group) string {
	start, okStart := g.AudioStart()
	end, okEnd := g.AudioEnd()
	if !okStart || !okEnd {
		return "-"
	}
	return fmt.Sprintf("%.1f - %.1f beats", start, end)
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}
