// Command main runs the database seeder for Strayland.
package main

import (
	"context"
	"flag"
	"log"

	"strayland/internal/config"
	"strayland/internal/database"
	"strayland/internal/seed"

	"github.com/joho/godotenv"
)

func main() {
	defaults := seed.DefaultOptions()
	numPosts := flag.Int("posts", defaults.NumPosts, "Number of posts to create")
	numVoters := flag.Int("voters", defaults.NumVoters, "Number of synthetic voters")
	maxComments := flag.Int("comments", defaults.MaxCommentsPerPost, "Maximum comments per post")
	maxDays := flag.Int("days", defaults.MaxDays, "Spread post timestamps over this many days")
	randSeed := flag.Int64("seed", 0, "Random seed (0 picks one)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, seed.Options{
		NumPosts:           *numPosts,
		NumVoters:          *numVoters,
		MaxCommentsPerPost: *maxComments,
		MaxDays:            *maxDays,
		RandSeed:           *randSeed,
		ShouldClean:        *shouldClean,
		DryRun:             *dryRun,
	})
	if _, err := s.Seed(ctx); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✨ All done! Your feed is now populated with demo posts.")
}
