// File: cmd/seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"loyalty-core/internal/config"
	"loyalty-core/internal/domain/model"
	pg "loyalty-core/internal/infra/db/postgres"
	"loyalty-core/internal/infra/logging"
	"loyalty-core/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	programRepo := pg.NewProgramRepo(pool)
	txm := pg.NewTxManager(pool)
	programUC := usecase.NewProgramUseCase(programRepo, txm, logger)

	const businessID = "demo-business"

	// If demo programs already exist, do nothing
	existing, err := programUC.ListByBusiness(ctx, businessID)
	if err != nil {
		log.Fatalf("list programs: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d demo programs already present. No changes.\n", len(existing))
		for _, p := range existing {
			fmt.Printf("  - %s (%s, status=%s)\n", p.ID, p.Rules.Type, p.Status)
		}
		return
	}

	seed := []struct {
		rules    model.ProgramRules
		branding model.Branding
	}{
		{
			rules: model.ProgramRules{
				Type:            model.ProgramTypeStamps,
				RewardThreshold: 10,
				EarnMode:        model.EarnModePerVisit,
				EarnIncrement:   1,
				MaxEarnsPerDay:  1,
				MinGapMinutes:   0,
				Timezone:        "Europe/London",
			},
			branding: model.Branding{RewardDescription: "Free coffee", StampLabel: "stamps"},
		},
		{
			rules: model.ProgramRules{
				Type:            model.ProgramTypePoints,
				RewardThreshold: 100,
				EarnMode:        model.EarnModePerTransaction,
				EarnIncrement:   10,
				MaxEarnsPerDay:  5,
				MinGapMinutes:   30,
				Timezone:        "America/New_York",
			},
			branding: model.Branding{RewardDescription: "Free sandwich", StampLabel: "points"},
		},
	}

	for _, s := range seed {
		p, err := programUC.Create(ctx, businessID, s.rules, s.branding)
		if err != nil {
			log.Fatalf("create program: %v", err)
		}
		for _, status := range []model.ProgramStatus{model.ProgramStatusSubmitted, model.ProgramStatusActive} {
			if _, err := programUC.Transition(ctx, p.ID, status); err != nil {
				log.Fatalf("activate program %s: %v", p.ID, err)
			}
		}
		fmt.Printf("seeded: %s (%s, threshold=%d, tz=%s)\n", p.ID, p.Rules.Type, p.Rules.RewardThreshold, p.Rules.Timezone)
		fmt.Printf("  counter token: %s\n", p.Tokens.Current)
	}

	fmt.Println("✅ Seeding complete.")
}
