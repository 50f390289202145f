package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/engagement"
)

var countersCmd = &cobra.Command{
	Use:   "counters",
	Short: "Inspect and repair denormalized counters",
}

var countersDriftCmd = &cobra.Command{
	Use:   "drift",
	Short: "List counters that disagree with their rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		drift, err := engagement.NewService(db).FindDrift(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(drift, func() {
			if len(drift) == 0 {
				fmt.Println("All counters match")
				return
			}
			for _, d := range drift {
				fmt.Printf("%-28s %s  stored=%d actual=%d\n", d.Counter, d.ID, d.Stored, d.Actual)
			}
		})
	},
}

var countersReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute every counter from its rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		fixed, err := engagement.NewService(db).ReconcileCounters(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(fixed, func() {
			for name, n := range fixed {
				fmt.Printf("%-28s %d rows updated\n", name, n)
			}
		})
	},
}

func init() {
	countersCmd.AddCommand(countersDriftCmd)
	countersCmd.AddCommand(countersReconcileCmd)
}
