package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/apereiratl/marten/internal/config"
	"github.com/apereiratl/marten/pkg/marten"
)

// sessionFlags holds the flags shared by commands that open a session.
type sessionFlags struct {
	connectionFlags

	configDir      string
	mode           string
	isolation      string
	commandTimeout time.Duration
	retries        int
	timeout        time.Duration
	metricsFile    string
}

func addSessionFlags(cmd *cobra.Command, f *sessionFlags) {
	addConnectionFlags(cmd, &f.connectionFlags)

	flags := cmd.Flags()
	flags.StringVar(&f.configDir, "config-dir", ".",
		"Directory containing marten.yaml and .env")
	flags.StringVar(&f.mode, "mode", "",
		"Session mode: autocommit|transactional|readonly\n"+
			"(default: session.mode in marten.yaml, else autocommit)")
	flags.StringVar(&f.isolation, "isolation", "",
		"Transaction isolation level, e.g. serializable or \"repeatable read\"\n"+
			"(default: read committed)")
	flags.DurationVar(&f.commandTimeout, "command-timeout", 0,
		"Timeout applied to each command attempt (0 = none)\n"+
			"Examples: 500ms, 30s")
	flags.IntVar(&f.retries, "retries", marten.DefaultRetryCount,
		"Retries after a transient failure (connection loss, serialization failure, deadlock)\n"+
			"0 disables retries")
	flags.DurationVar(&f.timeout, "timeout", 3*time.Minute,
		"Catastrophic failure protection timeout for the whole command")
	flags.StringVar(&f.metricsFile, "metrics-file", "",
		"Write Prometheus metrics in text format to this file when the command ends")
}

// loadProjectConfig loads .env and marten.yaml from dir.
// Returns nil config if marten.yaml does not exist (not an error).
func loadProjectConfig(dir string) (*config.ProjectConfig, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	projectCfg, err := config.Load(dir)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w", config.ConfigFileName, err)
	}
	return projectCfg, nil
}

// resolveSessionSettings overlays explicitly set flags on the session section
// of marten.yaml. The --retries default applies only without a marten.yaml.
func resolveSessionSettings(cmd *cobra.Command, f *sessionFlags, projectCfg *config.ProjectConfig) (*config.SessionSettings, error) {
	var sc config.SessionConfig
	if projectCfg != nil {
		sc = projectCfg.Session
	}

	changed := cmd.Flags().Changed
	if changed("mode") {
		sc.Mode = f.mode
	}
	if changed("isolation") {
		sc.Isolation = f.isolation
	}
	if changed("command-timeout") {
		sc.CommandTimeout = f.commandTimeout.String()
	}
	if projectCfg == nil || changed("retries") {
		sc.Retry.Attempts = f.retries
	}

	settings, err := sc.Resolve()
	if err != nil {
		return nil, err
	}
	if settings.Mode == marten.ModeExternal {
		return nil, fmt.Errorf("session mode %s needs a transaction owned by the caller and cannot be used from the command line: %w",
			settings.Mode, marten.ErrInvalidConfig)
	}
	return settings, nil
}

// commandContext bounds the command by timeout and cancels it on SIGINT or SIGTERM.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
