package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"

	"github.com/noah-isme/sma-enrollment-api/pkg/database"
)

func (cli *commandLine) migrate(args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	var action func(database.Migrator) error
	switch args[0] {
	case "up":
		action = database.MigrateUp
	case "down":
		action = database.MigrateDown
	case "version":
		action = cli.printVersion
	default:
		return fmt.Errorf("%q: no such command", args[0])
	}

	m, err := cli.newMigrator()
	if err != nil {
		return err
	}
	defer m.Close() //nolint:errcheck

	if err := action(m); err != nil {
		return err
	}
	if args[0] != "version" {
		fmt.Fprintf(cli.out, "migrate %s: done\n", args[0])
	}
	return nil
}

func (cli *commandLine) printVersion(m database.Migrator) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(cli.out, "no migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cli.out, "version %d (%s)\n", version, state)
	return nil
}
