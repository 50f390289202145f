package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/vidshare/internal/auth"
	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/engagement"
	"github.com/zfogg/vidshare/internal/maintenance"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run one housekeeping pass",
	Long: `Runs the same pass the server worker runs on a timer: purge expired reset
tokens and repair counter drift. Media of deleted videos is left to the
server, which has storage credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		authService := auth.NewService(db, cfg.Auth, nil, cfg.BaseURL)
		worker := maintenance.NewWorker(db, authService, engagement.NewService(db), nil, cfg.MaintenanceInterval, cfg.MediaRetention)
		report := worker.RunOnce(cmd.Context())
		return printResult(report, func() {
			fmt.Printf("Reset tokens purged: %d\n", report.ResetTokensPurged)
			fmt.Printf("Counters drifted:    %d\n", report.Drift)
			for name, n := range report.Reconciled {
				fmt.Printf("  %-26s %d\n", name, n)
			}
		})
	},
}
