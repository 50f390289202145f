package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/seed"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Println("Migrations completed")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with fake users, videos and engagement",
	Long: `Seed generates a development dataset with gofakeit. Counters are kept
consistent because engagement goes through the same service the API uses.

Examples:
  vidshare-admin seed
  vidshare-admin seed --users 50 --clean`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}

		flags := cmd.Flags()
		randSeed, _ := flags.GetInt64("seed")
		clean, _ := flags.GetBool("clean")
		counts := seed.DevCounts()
		if n, _ := flags.GetInt("users"); n > 0 {
			counts.Users = n
		}
		if n, _ := flags.GetInt("videos-per-user"); n > 0 {
			counts.VideosPerUser = n
		}

		seeder := seed.NewSeeder(db, randSeed)
		ctx := cmd.Context()
		if clean {
			if err := seeder.Clean(ctx); err != nil {
				return fmt.Errorf("clean: %w", err)
			}
		}
		summary, err := seeder.Seed(ctx, counts)
		if err != nil {
			return err
		}
		return printResult(summary, func() {
			fmt.Printf("Seeded %d users, %d videos, %d posts\n", summary.Users, summary.Videos, summary.Posts)
			fmt.Printf("  %d subscriptions, %d likes, %d comments, %d views\n",
				summary.Subscriptions, summary.Likes, summary.Comments, summary.Views)
		})
	},
}

func init() {
	seedCmd.Flags().Int64("seed", 1, "Random seed")
	seedCmd.Flags().Int("users", 0, "Number of users (default from the dev dataset)")
	seedCmd.Flags().Int("videos-per-user", 0, "Videos per user (default from the dev dataset)")
	seedCmd.Flags().Bool("clean", false, "Delete previously seeded data first")
}
