package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cinema-booking-cli/config"
	"cinema-booking-cli/service"
)

const appName = "cinema-booking-cli"

// BuildInfo is stamped into the binary with ldflags.
type BuildInfo struct {
	Version string
	Commit  string
}

func (b BuildInfo) String() string {
	version := b.Version
	if version == "" {
		version = "dev"
	}
	out := fmt.Sprintf("%s %s", appName, version)
	if b.Commit != "" && b.Commit != "none" {
		out += fmt.Sprintf(" (%s)", b.Commit)
	}
	return out
}

// globalFlags are the persistent flags shared by every command. A flag only
// overrides the environment when it was set on the command line.
type globalFlags struct {
	api      string
	feed     string
	logLevel string
	logFile  string
	noFeed   bool
}

// Execute runs the command line and returns the process exit code.
func Execute(info BuildInfo) int {
	root := newRootCmd(info)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd(info BuildInfo) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   appName + " [showtime-code]",
		Short: "Hold seats and book cinema tickets from the terminal",
		Long: `Pick seats on a live seat map, keep them on hold while you fill in
the payer details and pay before the hold runs out.

Run with a showtime code to open its seat map, or use one of the commands below.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runBook(cmd, flags, args[0])
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")

	flags.register(root.PersistentFlags())
	root.AddCommand(
		newBookCmd(flags),
		newRecentCmd(flags),
		newReleaseCmd(flags),
		newVersionCmd(info),
	)
	return root
}

func (f *globalFlags) register(pf *pflag.FlagSet) {
	pf.StringVar(&f.api, "api", "", "booking API base URL (overrides BOOKING_API_URL)")
	pf.StringVar(&f.feed, "ws", "", "seat feed websocket URL (overrides BOOKING_WS_URL)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&f.logFile, "log-file", "", "write logs to this file")
	pf.BoolVar(&f.noFeed, "no-feed", false, "do not follow the live seat feed")
}

func (f *globalFlags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	set := cmd.Flags()
	if set.Changed("api") {
		cfg.APIURL = f.api
	}
	if set.Changed("ws") {
		cfg.FeedURL = f.feed
	}
	if set.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if set.Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if set.Changed("no-feed") {
		cfg.DisableFeed = f.noFeed
	}
	return cfg, nil
}

func newClient(cfg config.Config) *service.Client {
	client := service.NewClient(cfg.APIURL, &http.Client{Timeout: cfg.HTTPTimeout})
	client.SetFeedURL(cfg.FeedURL)
	return client
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
		},
	}
}
