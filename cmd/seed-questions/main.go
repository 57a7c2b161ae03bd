package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/database"
	"github.com/stemsi/placement-backend/internal/logger"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/repository"
	"github.com/stemsi/placement-backend/internal/service"
)

func main() {
	cfg := config.Load()

	var (
		dir       string
		overwrite bool
	)
	flag.StringVar(&dir, "dir", cfg.QuestionsDir, "Directory holding placement.json, sat_verbal.json and sat_math.json")
	flag.BoolVar(&overwrite, "overwrite", false, "Replace banks that already hold questions")
	flag.Parse()

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("No storage backend available")
	}
	defer store.Close()

	// Flushing the display cache matters when a server shares this Redis.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, cached question lists will expire on their own")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	questionService := service.NewQuestionService(store, rdb, cfg.QuestionCacheTTL, log)

	fmt.Printf("=== Seeding questions from %s into %s ===\n", dir, store.Backend())

	report, err := questionService.SeedFromDir(ctx, dir, overwrite)
	if err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}

	for _, bank := range model.AllBanks {
		n, ok := report[bank]
		if !ok {
			fmt.Printf("  %-12s skipped\n", bank)
			continue
		}
		fmt.Printf("  %-12s %d questions\n", bank, n)
	}
	fmt.Println("Done.")
}
