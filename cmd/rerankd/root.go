package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rushteam/tunerank/config"
	_ "github.com/rushteam/tunerank/config/builders"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rerankd",
		Short: "rerankd - music candidate reranking service",
		Long: `rerankd reorders candidate tracks for a listener using their recent
listening sequence, long-term interest profile, session context and optional
external features, blending a sequential model with rule-based heuristics.`,
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringP("config", "c", "", "path to YAML config file (default $"+config.ConfigPathEnvVar+")")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newModelCommand())
	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// newLogger 按配置创建 zerolog 日志，未知级别回退为 info
func newLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "rerankd").Logger()
}
