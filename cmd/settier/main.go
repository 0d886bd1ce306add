// Command settier grants a tier to a user without going through Stripe.
// Useful for support cases and for local testing of paid features.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/database"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

func main() {
	uid := flag.String("uid", "", "Firebase uid of the user")
	tier := flag.String("tier", string(models.TierFree), "tier to apply: free, premium or pro")
	flag.Parse()

	if *uid == "" {
		fmt.Fprintln(os.Stderr, "usage: settier -uid <uid> -tier <free|premium|pro>")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Component("settier").WithError(err).Fatal("failed to load configuration")
	}
	logger.New(cfg)
	log := logger.Component("settier")

	db, err := database.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	gdb, err := db.Gorm(false)
	if err != nil {
		log.WithError(err).Fatal("failed to open gorm")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ent, err := service.NewEntitlementsService(gdb, cfg.FreeMealLimit).SetTier(ctx, *uid, models.Tier(*tier))
	if err != nil {
		log.WithError(err).Fatal("failed to set tier")
	}

	log.WithFields(logrus.Fields{
		"uid":   ent.UID,
		"tier":  ent.Tier,
		"limit": ent.MealGenerationsLimit,
		"used":  ent.MealGenerationsUsed,
	}).Info("tier updated")
}
