// Package main provides the grade-calculator server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shalteor/grade-calculator/internal/config"
	"github.com/shalteor/grade-calculator/internal/db"
	"github.com/shalteor/grade-calculator/internal/logging"
)

// configFile is set by the --config flag.
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "grade-calculator",
	Short: "Grade calculator backend",
	Long: `grade-calculator stores per-user grade hierarchies (categories and
assignments) in SQLite and serves them over HTTP. Running it without a
subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.Int("port", 5000, "HTTP listen port")
	flags.String("db", "grade.db", "SQLite database path")
	flags.String("driver", db.DriverSQLite, "SQLite driver: sqlite (pure Go) or sqlite3 (cgo)")
	flags.Bool("seed", true, "seed demo data when the database is created")
	flags.String("log-level", "info", "log level: silent, error, warn, info, debug")
	flags.String("log-format", logging.FormatText, "log format: text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// flagKeys maps config keys to the persistent flags that override them.
var flagKeys = map[string]string{
	config.KeyPort:           "port",
	config.KeyDatabasePath:   "db",
	config.KeyDatabaseDriver: "driver",
	config.KeyDatabaseSeed:   "seed",
	config.KeyLogLevel:       "log-level",
	config.KeyLogFormat:      "log-format",
}

// loadConfig resolves flags, environment, .env files and the config file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := config.New()
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return config.Config{}, err
	}
	return config.Load(v, configFile, config.DefaultEnvFiles)
}

// openDatabase builds the logger, opens the database and provisions the
// schema. The caller closes the returned database.
func openDatabase(ctx context.Context, cfg config.Config) (*db.DB, *logrus.Logger, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(db.Options{
		Path:   cfg.Database.Path,
		Driver: cfg.Database.Driver,
		Seed:   cfg.Database.Seed,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}

	logger.WithFields(logrus.Fields{
		"path":   database.Path(),
		"driver": cfg.Database.Driver,
	}).Info("database ready")
	return database, logger, nil
}
