package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "stratrun"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Quantitative strategy execution engine",
		Version: version,
		Long: `stratrun runs technical trading strategies over market data: synchronous
runs, capital-simulated backtests, a narrated SSE execution stream and a
live-price WebSocket feed.`,
	}
	rootCmd.PersistentFlags().String("config", "", "path to YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "override log level (trace..error)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStrategiesCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s %s\n", appName, version)
		},
	}
}

func setLogLevel(level string) {
	if level == "" {
		level = "info"
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
