package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"cinema-booking-cli/booking"
	"cinema-booking-cli/logger"
	"cinema-booking-cli/store"
	"cinema-booking-cli/tui"
)

// closeTimeout bounds the release sent when the client exits with seats held.
const closeTimeout = 5 * time.Second

func newBookCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "book <showtime-code>",
		Short: "Open the seat map of a showtime",
		Long: `Open the seat map of a showtime, hold seats and check out.

Seats still held when you quit are released. A hold left behind by a crash
is picked up again the next time the same showtime is opened.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBook(cmd, flags, args[0])
		},
	}
}

func runBook(cmd *cobra.Command, flags *globalFlags, code string) error {
	cfg, err := flags.load(cmd)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(logger.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Format: cfg.LogFormat,
	})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer closeLog()

	client := newClient(cfg)
	opts := booking.Options{
		Code:        code,
		Backend:     client,
		Store:       store.FileStore{Dir: cfg.StateDir},
		Log:         log,
		GuestToken:  cfg.GuestSession,
		HoldWarning: cfg.HoldWarning,
	}
	if !cfg.DisableFeed {
		opts.Feed = client
	}
	manager, err := booking.NewManager(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runDone := make(chan error, 1)
	go func() {
		runDone <- manager.Run(ctx)
	}()

	log.Info("booking session started", slog.String("showtime", code), slog.Bool("feed", opts.Feed != nil))
	_, uiErr := tea.NewProgram(tui.New(manager), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(uiErr, tea.ErrProgramKilled) {
		uiErr = nil
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := manager.Close(closeCtx); err != nil {
		log.Warn("close booking session", slog.Any("error", err))
	}
	if err := <-runDone; err != nil {
		log.Error("booking session stopped", slog.Any("error", err))
		if uiErr == nil {
			uiErr = err
		}
	}
	return uiErr
}
