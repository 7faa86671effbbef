package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"wordclash.exe.dev/db"
	"wordclash.exe.dev/srv"
)

const releaseVersion = "0.1.0"

func main() {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	cfg := srv.DefaultConfig()
	var configPath string

	v := viper.New()
	v.SetEnvPrefix("WORDCLASH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wordclash",
		Short:         "Real-time multiplayer word-guessing game server.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&configPath, "config", "", "path to YAML config file (env: WORDCLASH_CONFIG)")
	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: WORDCLASH_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: WORDCLASH_PORT)")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "externally reachable base URL (env: WORDCLASH_PUBLIC_URL)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the SQLite database (env: WORDCLASH_DB_PATH)")
	fs.StringVar(&cfg.ForcedWordLog, "forced-word-log", cfg.ForcedWordLog, "path to the forced-word review log (env: WORDCLASH_FORCED_WORD_LOG)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error (env: WORDCLASH_LOG_LEVEL)")
	fs.IntVar(&cfg.CountdownSeconds, "countdown-seconds", cfg.CountdownSeconds, "pre-game countdown length (env: WORDCLASH_COUNTDOWN_SECONDS)")
	fs.DurationVar(&cfg.SelectionTimeout, "selection-timeout", cfg.SelectionTimeout, "sabotage word selection deadline (env: WORDCLASH_SELECTION_TIMEOUT)")
	fs.DurationVar(&cfg.GracePeriod, "grace-period", cfg.GracePeriod, "reconnection grace period (env: WORDCLASH_GRACE_PERIOD)")
	fs.BoolVar(&cfg.TestMode, "test-mode", cfg.TestMode, "allow client test word seeds, never in production (env: WORDCLASH_TEST_MODE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wordclash v{{.Version}}\n")

	return cmd
}

func run(ctx context.Context, configPath string, cfg srv.Config) error {
	if configPath != "" {
		var err error
		cfg, err = srv.LoadConfig(configPath, cfg)
		if err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("wordclash server starting", "version", releaseVersion)
	if cfg.TestMode {
		slog.Warn("test mode enabled: client word seeds will override target selection")
	}

	wdb, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer wdb.Close()

	if err := db.RunMigrations(wdb); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	server := srv.NewServer(cfg, db.NewStore(wdb))
	return server.Run(ctx)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
