package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/account"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/home"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/log"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/storage"
	"github.com/angheloaguirre/GoroGrid-Energy-Monitoring-App/pkg/types"
)

func main() {
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding demo data")

	accounts := account.NewService(s)
	if _, err := accounts.SeedDemoUsers(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed demo users", slog.Any("error", err))
		os.Exit(1)
	}

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, demo := range account.DemoUsers() {
		user, err := s.GetUserByEmail(ctx, demo.Email)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to get demo user", slog.String("email", demo.Email), slog.Any("error", err))
			os.Exit(1)
		}

		// each demo home starts with a few devices switched around
		h := home.Default()
		for i := range h.Devices {
			if rng.Float64() < 0.25 {
				if _, err := home.ToggleDevice(&h, h.Devices[i].ID); err != nil {
					panic(err)
				}
			}
		}
		for i := range h.Rooms {
			h.Rooms[i].Temperature = 20 + float64(rng.Intn(9))/2
		}
		if err := s.SetHome(ctx, user.ID, h); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed home", slog.String("userID", user.ID), slog.Any("error", err))
			os.Exit(1)
		}

		// tariffs between 0.20 and 0.80 per kWh
		prefs := types.DefaultPreferences()
		prefs.TariffPerKWH = float64(20+rng.Intn(61)) / 100
		if err := storage.PreferencesFor(s, user.ID).SetPreferences(ctx, prefs); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed preferences", slog.String("userID", user.ID), slog.Any("error", err))
			os.Exit(1)
		}

		log.Ctx(ctx).InfoContext(
			ctx,
			"seeded demo user",
			slog.String("email", user.Email),
			slog.Float64("tariffPerKWH", prefs.TariffPerKWH),
		)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding complete")
}
