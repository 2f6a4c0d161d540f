package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chatd/internal/config"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	logLevel   string
}

func buildRootCmd() *cobra.Command {
	opts := &options{configPath: os.Getenv("CHATD_CONFIG"), logLevel: os.Getenv("CHATD_LOG_LEVEL")}
	root := &cobra.Command{
		Use:           "chatd",
		Short:         "Chat frontend server for local and remote LLM backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", opts.configPath, "Config file (.yaml, .json or .toml; defaults CHATD_CONFIG)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level: debug|info|warn|error (defaults CHATD_LOG_LEVEL or the config file)")

	root.AddCommand(serveCmd(opts), sendCmd(opts), modelsCmd(opts))

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	root.AddCommand(completionCmd)
	return root
}

// resolveConfig loads the config file if one is given, then applies
// environment and flag overrides and fills defaults.
func resolveConfig(opts *options) (config.Config, error) {
	var cfg config.Config
	if opts.configPath != "" {
		c, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = c
	}
	if v := os.Getenv("CHATD_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CHATD_MODELS_DIR"); v != "" {
		cfg.ModelsDir = v
	}
	if v := os.Getenv("CHATD_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Str("service", "chatd").Logger()
}

// splitCSV splits a comma-separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
