package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strikemap-systems/strikemap/internal/feeds"
	"github.com/strikemap-systems/strikemap/internal/geo"
	"github.com/strikemap-systems/strikemap/internal/ingest"
	"github.com/strikemap-systems/strikemap/internal/logging"
	"github.com/strikemap-systems/strikemap/internal/normalizer"
	"github.com/strikemap-systems/strikemap/internal/repository"
	"github.com/strikemap-systems/strikemap/internal/store"
)

var (
	seedBatch  int
	seedRounds int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Inject synthetic attack events",
	Long: `Generates synthetic attack events and runs them through the full
ingestion pipeline, populating the counters, the recent window, the live
channel and (when configured) the database. Intended for development
setups without feed credentials.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedBatch, "batch", 25, "events per round")
	seedCmd.Flags().IntVar(&seedRounds, "rounds", 1, "number of rounds")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), "text")

	st, err := store.NewRedis(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}
	defer st.Close()

	var repo repository.Repository
	if cfg.Database.URL != "" {
		pg, err := repository.NewPostgresRepository(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("database unavailable: %w", err)
		}
		defer pg.Close()
		repo = pg
	}

	regions, err := geo.LoadTable()
	if err != nil {
		return err
	}

	svc := ingest.NewService(st, repo, normalizer.New(), regions, nil,
		ingest.NoopClassifier{}, logger.Logger)
	demo := feeds.NewDemoFetcher(seedBatch)

	for i := 0; i < seedRounds; i++ {
		if err := svc.RunFeed(ctx, demo); err != nil {
			return err
		}
	}

	total, err := st.GetToday(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d rounds of up to %d events, today's counter: %d\n",
		seedRounds, seedBatch, total)
	return nil
}
