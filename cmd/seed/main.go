// Command seed loads demo providers, seekers and likes.
package main

import (
	"context"
	"flag"
	"log"

	"psymatch/internal/bootstrap"
	"psymatch/internal/config"
	"psymatch/internal/middleware"
	"psymatch/internal/repository"
	"psymatch/internal/seed"
)

func main() {
	numProviders := flag.Int("providers", 10, "Number of generated psychologists")
	numSeekers := flag.Int("seekers", 30, "Number of generated clients")
	likeRatio := flag.Float64("like-ratio", 0.2, "Probability that a generated client likes a psychologist")
	fixtures := flag.String("fixtures", "", "YAML fixture file to apply before generating data")
	startID := flag.Int64("start-id", seed.DefaultStartID, "First user id for generated users")
	rngSeed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	dryRun := flag.Bool("dry-run", false, "Build data without writing it")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{Migrate: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	factory := seed.NewFactory(
		repository.NewProfileRepository(db),
		repository.NewLikeRepository(db),
		seed.Options{Seed: *rngSeed, StartID: *startID, DryRun: *dryRun},
	)
	seeder := seed.NewSeeder(factory)

	if *fixtures != "" {
		fx, err := seed.LoadFixtureFile(*fixtures)
		if err != nil {
			log.Fatalf("Fixture loading failed: %v", err)
		}
		sum, err := seeder.ApplyFixtures(ctx, fx)
		if err != nil {
			log.Fatalf("Fixture seeding failed: %v", err)
		}
		log.Printf("Fixtures: %d psychologists, %d clients, %d likes (%d mutual)",
			sum.Providers, sum.Seekers, sum.Likes, sum.Mutual)
	}

	sum, err := seeder.SeedRandom(ctx, *numProviders, *numSeekers, *likeRatio)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Generated: %d psychologists, %d clients, %d likes (%d mutual)",
		sum.Providers, sum.Seekers, sum.Likes, sum.Mutual)
}
