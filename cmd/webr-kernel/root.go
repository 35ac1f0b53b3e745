package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "webr-kernel",
	Short: "Jupyter kernel adapter for webR",
	Long: `webr-kernel - run R notebooks against the webR WebAssembly build.

The kernel mediates between a Jupyter-style front-end and an R interpreter
compiled to WebAssembly: execute requests go in, ordered streams, results,
and plot display messages come out.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
}

func newLogger(cmd *cobra.Command, cfg Config) zerolog.Logger {
	level := cfg.Log.Level
	if flagLevel, _ := cmd.Root().PersistentFlags().GetString("log-level"); cmd.Root().PersistentFlags().Changed("log-level") {
		level = flagLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(parsed).With().Timestamp().Logger()
}

func loadConfigFromFlags(cmd *cobra.Command) (Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}
