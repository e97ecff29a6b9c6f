package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"cinema-booking-cli/model"
	"cinema-booking-cli/service"
	"cinema-booking-cli/store"
)

func newReleaseCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	releaseCmd := &cobra.Command{
		Use:   "release",
		Short: "Release the seats left on hold by the last session",
		Long: `Release the seats recorded by a session that did not shut down cleanly.

The backend frees them on its own once the hold runs out; this only
gives them back sooner.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return err
			}
			st := store.FileStore{Dir: cfg.StateDir}
			out := cmd.OutOrStdout()

			record, ok, err := st.LoadHold()
			if err != nil {
				return fmt.Errorf("load hold record: %w", err)
			}
			if !ok || record.HeldBy == "" || len(record.SeatIDs) == 0 {
				fmt.Fprintln(out, "No held seats to release.")
				return nil
			}

			if !yes {
				confirmed, err := confirmRelease(record)
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(out, "Seats kept on hold.")
					return nil
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
			defer cancel()
			err = newClient(cfg).Release(ctx, record.ShowtimeCode, model.ReleaseRequest{
				HeldBy:  record.HeldBy,
				SeatIDs: record.SeatIDs,
			})
			switch {
			case err == nil:
				fmt.Fprintf(out, "Released %s for showtime %s.\n", joinSeats(record.SeatIDs), record.ShowtimeCode)
			case service.IsNotFound(err) || service.HasCode(err, service.CodeSeatExpired):
				fmt.Fprintf(out, "The hold on showtime %s had already lapsed.\n", record.ShowtimeCode)
			default:
				return fmt.Errorf("release seats: %w", err)
			}
			return st.ClearHold()
		},
	}
	releaseCmd.Flags().BoolVarP(&yes, "yes", "y", false, "release without asking")
	return releaseCmd
}

func confirmRelease(record store.HoldRecord) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Release %s for showtime %s", joinSeats(record.SeatIDs), record.ShowtimeCode),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, fmt.Errorf("confirm release: %w", err)
	}
	return true, nil
}

func joinSeats(ids []model.SeatID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
