// Command migrate applies the embedded document-store schema migrations.
//
//	migrate [-dsn <url>] up|down|steps -n N|version
package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/subcommands"
	_ "github.com/joho/godotenv/autoload"

	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/pkg/database"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "TALLY_DB_DSN"

func main() {
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	dsn := flag.String("dsn", "", "Database URL (default $"+envDSN+", then TALLY_DB_*)")

	commander := subcommands.NewCommander(flag.CommandLine, "migrate")
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	open := func() (*migrate.Migrate, error) { return openMigrator(*dsn) }
	commander.Register(&upCmd{open: open}, "")
	commander.Register(&downCmd{open: open}, "")
	commander.Register(&stepsCmd{open: open}, "")
	commander.Register(&versionCmd{open: open}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func openMigrator(flagDSN string) (*migrate.Migrate, error) {
	dsn, err := resolveDSN(flagDSN)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// resolveDSN prefers the flag, then TALLY_DB_DSN, then a URL built from the
// TALLY_DB_* variables the server reads.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}

	cfg := database.Config{Name: "tally", User: "tally", Password: "tally"}
	if err := cfg.Finalize(config.DatabaseEnv); err != nil {
		return "", fmt.Errorf("database config: %w", err)
	}
	return cfg.URL(), nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
