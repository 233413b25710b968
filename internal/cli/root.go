// Package cli implements crctl, the operator command line for the change
// request registry. It talks to the configured backend directly through the
// same service the HTTP server uses.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"crboard/internal/app"
	"crboard/internal/platform/config"
	"crboard/internal/platform/logger"
	"crboard/pkg/requestcontext"
)

const actor = "crctl"

// NewRootCommand builds the crctl command tree. Settings resolve as flags,
// then CRBOARD_* environment variables, then the --config file.
func NewRootCommand(version string) *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "crctl",
		Short:         "Operate the change request registry",
		Long:          `crctl imports, lists and summarizes change requests in the registry backend configured for crboard.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfigFile(v)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("store", config.BackendMemory, "store backend: memory, redis, postgres, sqlite or badger")
	flags.String("seed-file", "", "bootstrap document used when the store is empty")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.String("redis-url", "", "redis connection url")
	flags.String("postgres-url", "", "postgres connection url")
	flags.String("badger-path", "", "badger data directory")
	flags.String("log-level", "warn", "log level")
	flags.Int("retries", 3, "conflict retries per mutation")

	bind := map[string]string{
		"config":           "config",
		"store.backend":    "store",
		"store.seed_file":  "seed-file",
		"sqlite.path":      "sqlite-path",
		"redis.url":        "redis-url",
		"postgres.url":     "postgres-url",
		"badger.path":      "badger-path",
		"log_level":        "log-level",
		"conflict_retries": "retries",
	}
	for key, flag := range bind {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	v.SetEnvPrefix(strings.TrimSuffix(config.Prefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newImportCommand(v),
		newListCommand(v),
		newGetCommand(v),
		newDashboardCommand(v),
		newSeedCommand(v),
		newDeleteCommand(v),
		newTokenCommand(v),
	)
	return root
}

func readConfigFile(v *viper.Viper) error {
	path := v.GetString("config")
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// loadConfig overlays viper settings onto the environment configuration.
func loadConfig(v *viper.Viper) (config.Server, error) {
	cfg, err := config.ParseEnv()
	if err != nil {
		return config.Server{}, err
	}
	overlay := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	overlay("store.backend", &cfg.Store.Backend)
	overlay("store.seed_file", &cfg.Store.SeedFile)
	overlay("sqlite.path", &cfg.SQLite.Path)
	overlay("redis.url", &cfg.Redis.URL)
	overlay("postgres.url", &cfg.Postgres.URL)
	overlay("badger.path", &cfg.Badger.Path)
	if v.IsSet("conflict_retries") {
		cfg.ConflictRetries = v.GetInt("conflict_retries")
	}
	// the CLI logs to stderr and stays quiet unless asked
	cfg.LogLevel = v.GetString("log_level")
	cfg.LogFormat = "text"

	if err := cfg.Validate(); err != nil {
		return config.Server{}, err
	}
	return cfg, nil
}

// session is one command invocation's service and settings.
type session struct {
	app     *app.App
	cfg     config.Server
	logger  *slog.Logger
	out     io.Writer
	retries int
}

func openSession(cmd *cobra.Command, v *viper.Viper) (*session, context.Context, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	ctx := requestcontext.WithActor(cmd.Context(), actor)
	ctx = requestcontext.WithRequestID(ctx, uuid.NewString())

	a, err := app.New(ctx, cfg, log, nil)
	if err != nil {
		return nil, nil, err
	}
	return &session{app: a, cfg: cfg, logger: log, out: cmd.OutOrStdout(), retries: cfg.ConflictRetries}, ctx, nil
}

func (s *session) Close() {
	if err := s.app.Close(); err != nil {
		s.logger.Error("close resources", "error", err)
	}
}

func (s *session) printJSON(v any) error {
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
