package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
	"github.com/noah-isme/sma-enrollment-api/pkg/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type accountManager interface {
	Upsert(ctx context.Context, username, password string, role models.UserRole) (*models.User, error)
	ResetPassword(ctx context.Context, username, password string) error
}

type seeder interface {
	Seed(ctx context.Context) (*service.SeedResult, error)
}

type commandLine struct {
	out         io.Writer
	accounts    accountManager
	seeder      seeder
	newMigrator func() (database.Migrator, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate up|down|version                    - manage the database schema")
	fmt.Fprintln(cli.out, "  seed                                       - load sample data into an empty database")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -role ROLE      - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME           - reset a user's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserName := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", string(models.RoleStudent), "One of student, teacher or admin.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordName := resetPasswordCmd.String("username", "", "The user's username. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		return cli.migrate(args[2:])
	case "seed":
		return cli.seed(ctx)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		role, err := models.ParseRole(*addUserRole)
		if err != nil {
			return err
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		user, err := cli.accounts.Upsert(ctx, *addUserName, pwd, role)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "user %s saved with role %s (id %d)\n", user.Username, user.Role, user.ID)
		return nil
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordName == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		if err := cli.accounts.ResetPassword(ctx, *resetPasswordName, pwd); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "password updated for %s\n", *resetPasswordName)
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) seed(ctx context.Context) error {
	result, err := cli.seeder.Seed(ctx)
	if err != nil {
		return err
	}
	if result.Skipped {
		fmt.Fprintln(cli.out, "users already exist; seed skipped")
		return nil
	}
	fmt.Fprintf(cli.out, "seeded %d users, %d courses, %d enrollments, %d grades\n",
		result.Users, result.Courses, result.Enrollments, result.Grades)
	return nil
}
