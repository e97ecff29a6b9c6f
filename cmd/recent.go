package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"cinema-booking-cli/store"
)

func newRecentCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List the showtimes opened lately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			st := store.FileStore{Dir: cfg.StateDir}

			shows, err := st.LoadRecentShowtimes()
			if err != nil {
				return fmt.Errorf("load recent showtimes: %w", err)
			}
			if len(shows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent showtimes.")
				return nil
			}

			hold, held, err := st.LoadHold()
			if err != nil || !held {
				hold = store.HoldRecord{}
			}
			renderRecent(cmd.OutOrStdout(), shows, hold)
			return nil
		},
	}
}

func renderRecent(out io.Writer, shows []store.RecentShowtime, hold store.HoldRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Code", "Movie", "Starts", "Hold"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 32},
	})

	for _, show := range shows {
		t.AppendRow(table.Row{
			show.Code,
			show.MovieTitle,
			formatStart(show.StartTime),
			holdSummary(show.Code, hold),
		})
	}
	t.Render()
}

func formatStart(start time.Time) string {
	if start.IsZero() {
		return "-"
	}
	return start.Local().Format("Mon 02/01 15:04")
}

func holdSummary(code string, hold store.HoldRecord) string {
	if hold.ShowtimeCode == "" || !strings.EqualFold(hold.ShowtimeCode, code) || len(hold.SeatIDs) == 0 {
		return ""
	}
	return fmt.Sprintf("%d seat(s)", len(hold.SeatIDs))
}
