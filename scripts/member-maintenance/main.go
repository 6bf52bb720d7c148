// Standalone entrypoint for the nightly retention job. Run from cron:
//
//	0 3 * * * /usr/local/bin/member-maintenance
package main

import (
	"os"
	"time"

	"vcspos-server/config"
	"vcspos-server/database"
	"vcspos-server/services"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := database.Connect(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	report, err := services.RunMemberMaintenance(db.DB, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("member maintenance failed")
	}

	log.Info().
		Int64("archived", report.Archived).
		Int64("purged", report.Purged).
		Msg("done")
}
