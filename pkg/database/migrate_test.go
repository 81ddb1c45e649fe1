package database

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-enrollment-api/pkg/config"
)

type fakeMigrator struct {
	upErr   error
	downErr error
}

func (f fakeMigrator) Up() error                    { return f.upErr }
func (f fakeMigrator) Down() error                  { return f.downErr }
func (f fakeMigrator) Version() (uint, bool, error) { return 2, false, nil }
func (f fakeMigrator) Close() (error, error)        { return nil, nil }

func TestMigrationURL(t *testing.T) {
	url := MigrationURL(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "app",
		Password: "p@ss",
		Name:     "student_enrollment",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://app:p%40ss@db:5433/student_enrollment?sslmode=disable", url)
}

func TestMigrateUpIgnoresNoChange(t *testing.T) {
	assert.NoError(t, MigrateUp(fakeMigrator{upErr: migrate.ErrNoChange}))
	assert.NoError(t, MigrateDown(fakeMigrator{downErr: migrate.ErrNoChange}))

	boom := errors.New("dirty database")
	err := MigrateUp(fakeMigrator{upErr: boom})
	assert.ErrorIs(t, err, boom)
}
