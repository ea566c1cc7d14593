package cmd

import (
	"fmt"
	"strconv"

	"github.com/audiolibrelab/liveexport/internal/session"

	"github.com/spf13/cobra"
)

var tracksView string

var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List the tracks of the open set",
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := parseView(tracksView)
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

		analyzer := session.NewAnalyzer(client, view)
		if err := analyzer.Refresh(); err != nil {
			return err
		}

		rows := make([][]string, 0, len(analyzer.Tracks()))
		for _, t := range analyzer.Tracks() {
			rows = append(rows, []string{
				strconv.Itoa(t.Index),
				t.Name,
				trackKind(t),
				muteLabel(t.Muted),
				strconv.Itoa(len(t.Clips)),
				audioRangeLabel(t),
			})
		}
		fmt.Println(renderTable(
			[]string{"#", "NAME", "TYPE", "MUTED", "CLIPS", "AUDIO RANGE"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
		))
		return nil
	},
}

func parseView(s string) (session.View, error) {
	switch s {
	case "", "arrangement":
		return session.ViewArrangement, nil
	case "session":
		return session.ViewSession, nil
	default:
		return "", fmt.Errorf("unknown view %q, expected arrangement or session", s)
	}
}

func trackKind(t session.Track) string {
	if t.IsGroup {
		return "group"
	}
	return "track"
}

func muteLabel(muted bool) string {
	if muted {
		return "muted"
	}
	return "-"
}

func audioRangeLabel(t session.Track) string {
	start, okStart := t.AudioStart()
	end, okEnd := t.AudioEnd()
	if !okStart || !okEnd {
		return "-"
	}
	return fmt.Sprintf("%.1f - %.1f beats", start, end)
}

func init() {
	tracksCmd.Flags().StringVar(&tracksView, "view", "arrangement", "clip view to analyze: arrangement or session")
	rootCmd.AddCommand(tracksCmd)
}
