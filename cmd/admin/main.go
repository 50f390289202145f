package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zfogg/vidshare/internal/config"
	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/logger"
	"gorm.io/gorm"
)

var (
	output   string = "text" // "text" or "json"
	logLevel string = "warn"
)

var rootCmd = &cobra.Command{
	Use:   "vidshare-admin",
	Short: "vidshare admin - database and maintenance tasks",
	Long: `vidshare-admin runs operator tasks against the database configured in
the environment: migrations, seeding, counter repair and search reindexing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Initialize(logLevel, "vidshare-admin.log")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(countersCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(maintenanceCmd)
}

func main() {
	defer logger.Close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openDB loads the configuration and connects.
func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database.DSN(), database.DefaultOptions())
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

// printResult writes v as JSON in json mode and falls back to text otherwise.
func printResult(v interface{}, text func()) error {
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}
