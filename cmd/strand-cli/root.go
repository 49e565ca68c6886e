package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/strand-kv/strand-go/config"
	"github.com/strand-kv/strand-go/strand"
)

var rootCmd = &cobra.Command{
	Use:           "strand-cli",
	Short:         "Interact with a RESP-speaking server",
	Long:          "strand-cli sends commands, subscribes to channels and benchmarks a RESP-speaking server over the strand client.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().String("addr", "", "server address (host:port, or a socket path for --network unix)")
	rootCmd.PersistentFlags().String("network", "", "transport network: tcp or unix")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(sendCmd, pingCmd, subscribeCmd, benchCmd)
}

// loadConfig merges the environment configuration with command-line flags;
// flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if s, _ := cmd.Flags().GetString("addr"); s != "" {
		cfg.Addr = s
	}
	if s, _ := cmd.Flags().GetString("network"); s != "" {
		cfg.Network = s
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, l, nil
}

func dial(cfg *config.Config, l *slog.Logger, opts ...strand.Option) (*strand.Conn, error) {
	base := []strand.Option{
		strand.WithLogger(l),
		strand.WithMaxElements(cfg.MaxElements),
		strand.WithMaxBufferSize(cfg.MaxBufferSize),
	}
	return strand.Connect(cfg.Network, cfg.Addr, append(base, opts...)...)
}
