package main

import (
	"flag"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/database"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
)

func main() {
	migrationsDir := flag.String("dir", "migrations", "directory holding .sql migration files")
	debug := flag.Bool("debug", false, "log every SQL statement")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Component("migrate").WithError(err).Fatal("failed to load configuration")
	}
	logger.New(cfg)
	log := logger.Component("migrate")

	db, err := database.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	gdb, err := db.Gorm(*debug)
	if err != nil {
		log.WithError(err).Fatal("failed to open gorm")
	}

	if err := database.RunMigrations(gdb, *migrationsDir); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	log.Info("migrations complete")
}
