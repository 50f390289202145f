package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zfogg/vidshare/internal/database"
	"github.com/zfogg/vidshare/internal/search"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the Elasticsearch video index from the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if cfg.Search.ElasticsearchURL == "" {
			return errors.New("ELASTICSEARCH_URL is not set")
		}
		es, err := search.NewESIndex(cfg.Search.ElasticsearchURL, cfg.Search.Index)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := es.EnsureIndex(ctx); err != nil {
			return err
		}
		n, err := search.NewService(es, search.NewSQLIndex(db)).Reindex(ctx, db)
		if err != nil {
			return err
		}
		return printResult(map[string]int{"indexed": n}, func() {
			fmt.Printf("Indexed %d videos into %q\n", n, cfg.Search.Index)
		})
	},
}
