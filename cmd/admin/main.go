package main

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-api/internal/repository"
	"github.com/noah-isme/sma-enrollment-api/internal/service"
	"github.com/noah-isme/sma-enrollment-api/migrations"
	"github.com/noah-isme/sma-enrollment-api/pkg/config"
	"github.com/noah-isme/sma-enrollment-api/pkg/database"
	"github.com/noah-isme/sma-enrollment-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	cli := &commandLine{
		out: os.Stdout,
		newMigrator: func() (database.Migrator, error) {
			return database.NewMigrator(migrations.FS, cfg.Database)
		},
	}

	// migrate must work before the schema exists, so the pool is only opened
	// for the commands that need it.
	if len(os.Args) > 1 && os.Args[1] != "migrate" {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect database", zap.Error(err))
		}
		defer db.Close()

		users := repository.NewUserRepository(db)
		courses := repository.NewCourseRepository(db)
		enrollments := repository.NewEnrollmentRepository(db)
		grades := repository.NewGradeRepository(db)

		cli.accounts = service.NewUserService(users, nil, nil, logr)
		cli.seeder = service.NewSeedService(users, courses, enrollments, grades, logr)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logr.Error("command failed", zap.Error(err))
		}
		os.Exit(1)
	}
}
