package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/logger"
)

func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.Usage = printUsage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Migration failed to initialize")
	}
	defer m.Close()
	m.Log = migrateLogger{log: log}

	if err := run(m, args); err != nil {
		log.Fatal().Err(err).Str("command", args[0]).Msg("Migration failed")
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info().Msg("Schema is empty")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to read schema version")
	default:
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Schema version")
	}
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Down())
	case "version":
		return nil
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return ignoreNoChange(m.Steps(n))
	case "force":
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires a numeric argument", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid argument %q: %w", args[1], err)
	}
	return n, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// migrateLogger routes migrate's progress output through zerolog.
type migrateLogger struct{ log zerolog.Logger }

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Info().Msgf(format, v...)
}

func (l migrateLogger) Verbose() bool { return false }

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [flags] <command>")
	fmt.Fprintln(os.Stderr, "Commands: up, down, version, steps <n>, force <version>")
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}
