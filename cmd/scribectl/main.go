// Package main provides scribectl, the operator CLI. It opens the same stores
// as the API and runs admin tasks against them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"errors"
	"io"
	"os"
	"path/filepath"

	"scribe/infrastructure/config"
	"scribe/infrastructure/di"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	cfgKeyConfig = "config"
	cfgKeyJSON   = "json"
)

var (
	// settings holds flag and SCRIBECTL_* values.
	settings = viper.New()

	// container is opened by PersistentPreRunE.
	container *di.Container
	cleanup   func()
)

func main() {
	err := newRootCmd().Execute()
	closeContainer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scribectl",
		Short: "scribectl administers a scribe deployment",
		Long: `scribectl runs operator tasks such as granting the admin role, editing
subscriptions and purging old exports. It reads the same configuration as
the API server: defaults, .env, the YAML file given by --config and the
environment.`,
		SilenceUsage:      true,
		PersistentPreRunE: openContainer,
	}

	root.PersistentFlags().String(cfgKeyConfig, "", "YAML configuration file (default: $CONFIG_FILE)")
	root.PersistentFlags().Bool(cfgKeyJSON, false, "output as JSON")
	_ = settings.BindPFlags(root.PersistentFlags())
	settings.SetEnvPrefix("SCRIBECTL")
	settings.AutomaticEnv()

	root.AddCommand(versionCmd())
	root.AddCommand(grantAdminCmd())
	root.AddCommand(setSubscriptionCmd())
	root.AddCommand(usersCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(purgeExportsCmd())
	return root
}

// openContainer loads the configuration and wires the services.
func openContainer(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	if err := readSettings(); err != nil {
		return err
	}
	path := settings.GetString(cfgKeyConfig)
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.NewLoader(path, ".env").Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Keep the operator's terminal readable.
	if settings.GetBool(cfgKeyJSON) || cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}

	c, done, err := di.InitializeContainer(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	container, cleanup = c, done
	return nil
}

// readSettings merges scribectl.yaml from the working directory or the user
// config directory. A missing file is not an error.
func readSettings() error {
	settings.SetConfigName("scribectl")
	settings.SetConfigType("yaml")
	settings.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		settings.AddConfigPath(filepath.Join(dir, "scribe"))
	}
	if err := settings.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read scribectl.yaml: %w", err)
	}
	return nil
}

func closeContainer() {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
	container = nil
}

// printResult writes v as indented JSON with --json, or calls text otherwise.
func printResult(w io.Writer, v any, text func(io.Writer)) error {
	if settings.GetBool(cfgKeyJSON) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
