package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-api/internal/models"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
	"github.com/noah-isme/sma-enrollment-api/pkg/database"
)

type fakeAccounts struct {
	upserted map[string]models.UserRole
	reset    map[string]string
	missing  bool
}

func (f *fakeAccounts) Upsert(ctx context.Context, username, password string, role models.UserRole) (*models.User, error) {
	if f.upserted == nil {
		f.upserted = map[string]models.UserRole{}
	}
	f.upserted[username] = role
	return &models.User{ID: 7, Username: username, Role: role}, nil
}

func (f *fakeAccounts) ResetPassword(ctx context.Context, username, password string) error {
	if f.missing {
		return errors.New("user not found")
	}
	if f.reset == nil {
		f.reset = map[string]string{}
	}
	f.reset[username] = password
	return nil
}

type fakeSeeder struct {
	result *service.SeedResult
}

func (f fakeSeeder) Seed(ctx context.Context) (*service.SeedResult, error) {
	return f.result, nil
}

type fakeMigrator struct {
	calls   []string
	version uint
	err     error
	closed  bool
}

func (m *fakeMigrator) Up() error {
	m.calls = append(m.calls, "up")
	return m.err
}

func (m *fakeMigrator) Down() error {
	m.calls = append(m.calls, "down")
	return m.err
}

func (m *fakeMigrator) Version() (uint, bool, error) {
	m.calls = append(m.calls, "version")
	return m.version, false, m.err
}

func (m *fakeMigrator) Close() (error, error) {
	m.closed = true
	return nil, nil
}

func setup(t *testing.T, password string) (*commandLine, *fakeAccounts, *fakeMigrator, *bytes.Buffer) {
	t.Helper()

	previous := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(password), nil }
	t.Cleanup(func() { readPasswordFunc = previous })

	out := &bytes.Buffer{}
	accounts := &fakeAccounts{}
	migrator := &fakeMigrator{}
	cli := &commandLine{
		out:         out,
		accounts:    accounts,
		seeder:      fakeSeeder{result: &service.SeedResult{Users: 6, Courses: 3, Enrollments: 4, Grades: 4}},
		newMigrator: func() (database.Migrator, error) { return migrator, nil },
	}
	return cli, accounts, migrator, out
}

func TestRunPrintsUsage(t *testing.T) {
	cli, _, _, out := setup(t, "secret")

	assert.Equal(t, errHelp, cli.run([]string{"admin"}))
	assert.Equal(t, errHelp, cli.run([]string{"admin", "lol"}))
	assert.Contains(t, out.String(), "Usage:")
}

func TestMigrateCommands(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantErr    error
		wantErrStr string
		wantCalls  []string
	}{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: `"lol": no such command`},
		{name: "up", args: []string{"migrate", "up"}, wantCalls: []string{"up"}},
		{name: "down", args: []string{"migrate", "down"}, wantCalls: []string{"down"}},
		{name: "version", args: []string{"migrate", "version"}, wantCalls: []string{"version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, _, migrator, _ := setup(t, "")
			err := cli.run(append([]string{"admin"}, tt.args...))
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.EqualError(t, err, tt.wantErrStr)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantCalls, migrator.calls)
				assert.True(t, migrator.closed)
			}
		})
	}
}

func TestMigrateUpToleratesNoChange(t *testing.T) {
	cli, _, migrator, out := setup(t, "")
	migrator.err = migrate.ErrNoChange

	require.NoError(t, cli.run([]string{"admin", "migrate", "up"}))
	assert.Contains(t, out.String(), "migrate up: done")
}

func TestMigrateVersionWithoutMigrations(t *testing.T) {
	cli, _, migrator, out := setup(t, "")
	migrator.err = migrate.ErrNilVersion

	require.NoError(t, cli.run([]string{"admin", "migrate", "version"}))
	assert.Contains(t, out.String(), "no migrations applied")
}

func TestSeed(t *testing.T) {
	cli, _, _, out := setup(t, "")

	require.NoError(t, cli.run([]string{"admin", "seed"}))
	assert.Contains(t, out.String(), "seeded 6 users, 3 courses, 4 enrollments, 4 grades")

	cli.seeder = fakeSeeder{result: &service.SeedResult{Skipped: true}}
	require.NoError(t, cli.run([]string{"admin", "seed"}))
	assert.Contains(t, out.String(), "seed skipped")
}

func TestAddUser(t *testing.T) {
	cli, accounts, _, out := setup(t, "s3cret")

	assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser"}))
	assert.Error(t, cli.run([]string{"admin", "adduser", "-username", "bob", "-role", "janitor"}))

	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "bob", "-role", "Teacher"}))
	assert.Equal(t, models.RoleTeacher, accounts.upserted["bob"])
	assert.Contains(t, out.String(), "user bob saved with role teacher")
}

func TestAddUserRequiresPassword(t *testing.T) {
	cli, accounts, _, _ := setup(t, "")

	assert.Equal(t, errHelp, cli.run([]string{"admin", "adduser", "-username", "bob"}))
	assert.Empty(t, accounts.upserted)
}

func TestResetPassword(t *testing.T) {
	cli, accounts, _, _ := setup(t, "n3w")

	assert.Equal(t, errHelp, cli.run([]string{"admin", "resetpassword"}))

	require.NoError(t, cli.run([]string{"admin", "resetpassword", "-username", "alice"}))
	assert.Equal(t, "n3w", accounts.reset["alice"])

	accounts.missing = true
	assert.Error(t, cli.run([]string{"admin", "resetpassword", "-username", "ghost"}))
}
