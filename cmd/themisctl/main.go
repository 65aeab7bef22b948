// Command themisctl is the process entry point for the sort pipeline's
// scheduling and I/O substrate: it parses the node's parameter set,
// wires up the ambient services (stat writer, status printer,
// telemetry, coordinator client, resource scheduler), and runs until
// signaled to stop.
//
// Logging:
//   - One base *slog.Logger is built here from --log-format/--log-level
//   - Passed down to every component via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"themis/internal/logging"
	"themis/internal/paramreg"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "themisctl",
		Short: "Run and inspect the sort pipeline's scheduling and I/O substrate",
	}
	rootCmd.PersistentFlags().String("log-format", "text", "log output format: text or json")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringArray("log-level-component", nil,
		"raise or lower one component's log level below --log-level, as component=level (repeatable)")

	rootCmd.AddCommand(newRunCmd(), newDumpParamsCmd(), newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		var malformed *paramreg.ErrMalformedArgs
		if errors.As(err, &malformed) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

// buildLogger builds the base handler from --log-format/--log-level and
// wraps it in a logging.ComponentFilterHandler, so any subsystem's
// verbosity can be raised or lowered independently via
// --log-level-component (and, for long-running processes, at runtime
// through the handler's SetLevel/ClearLevel).
func buildLogger(cmd *cobra.Command) *slog.Logger {
	format, _ := cmd.Flags().GetString("log-format")
	levelFlag, _ := cmd.Flags().GetString("log-level")
	componentFlags, _ := cmd.Flags().GetStringArray("log-level-component")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelFlag)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var base slog.Handler
	if format == "json" {
		base = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		base = slog.NewTextHandler(os.Stderr, opts)
	}

	filter := logging.NewComponentFilterHandler(base, level)
	for _, kv := range componentFlags {
		component, levelStr, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		var componentLevel slog.Level
		if err := componentLevel.UnmarshalText([]byte(levelStr)); err != nil {
			continue
		}
		filter.SetLevel(component, componentLevel)
	}

	return slog.New(filter)
}
