package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/subcommands"
)

type opener func() (*migrate.Migrate, error)

// run opens the migrator, hands it to fn, and converts the result to an
// exit status.
func run(open opener, fn func(*migrate.Migrate) error) subcommands.ExitStatus {
	m, err := open()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer m.Close()

	if err := fn(m); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type upCmd struct{ open opener }

func (*upCmd) Name() string           { return "up" }
func (*upCmd) Synopsis() string       { return "apply all pending migrations" }
func (*upCmd) Usage() string          { return "migrate up\n" }
func (*upCmd) SetFlags(*flag.FlagSet) {}

func (c *upCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	return run(c.open, func(m *migrate.Migrate) error {
		if err := ignoreNoChange(m.Up()); err != nil {
			return fmt.Errorf("up: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	})
}

type downCmd struct{ open opener }

func (*downCmd) Name() string           { return "down" }
func (*downCmd) Synopsis() string       { return "revert every applied migration" }
func (*downCmd) Usage() string          { return "migrate down\n" }
func (*downCmd) SetFlags(*flag.FlagSet) {}

func (c *downCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	return run(c.open, func(m *migrate.Migrate) error {
		if err := ignoreNoChange(m.Down()); err != nil {
			return fmt.Errorf("down: %w", err)
		}
		fmt.Println("migrations reverted")
		return nil
	})
}

type stepsCmd struct {
	open opener
	n    int
}

func (*stepsCmd) Name() string     { return "steps" }
func (*stepsCmd) Synopsis() string { return "apply (n > 0) or revert (n < 0) n migrations" }
func (*stepsCmd) Usage() string    { return "migrate steps -n <count>\n" }

func (c *stepsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.n, "n", 0, "Number of migrations; negative reverts")
}

func (c *stepsCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	if c.n == 0 {
		fmt.Fprintln(os.Stderr, "steps: -n must be non-zero")
		return subcommands.ExitUsageError
	}
	return run(c.open, func(m *migrate.Migrate) error {
		if err := ignoreNoChange(m.Steps(c.n)); err != nil {
			return fmt.Errorf("steps %d: %w", c.n, err)
		}
		fmt.Printf("applied %d migration steps\n", c.n)
		return nil
	})
}

type versionCmd struct{ open opener }

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the applied schema version" }
func (*versionCmd) Usage() string          { return "migrate version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (c *versionCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	return run(c.open, func(m *migrate.Migrate) error {
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
		return nil
	})
}
