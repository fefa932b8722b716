// Package main implements marketctl, the marketplace maintenance CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	catalogsvc "github.com/shoplink/marketplace/internal/app/services/catalog"
	"github.com/shoplink/marketplace/internal/app/storage/sqlite"
	"github.com/shoplink/marketplace/internal/config"
	"github.com/shoplink/marketplace/internal/platform/migrations"
	"github.com/shoplink/marketplace/pkg/logger"
)

// defaultIcons maps the stock category slugs to their glyphs.
var defaultIcons = map[string]string{
	"flowers":     "💐",
	"food":        "🍱",
	"sweets":      "🍰",
	"gifts":       "🎁",
	"electronics": "📱",
	"clothes":     "👕",
	"beauty":      "💄",
	"services":    "🛠",
}

func main() {
	var dbPath string

	root := &cobra.Command{
		Use:   "marketctl",
		Short: "Marketplace database maintenance",
		Long:  "marketctl performs maintenance tasks against the marketplace SQLite database.",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (defaults to DATABASE_PATH or ./marketplace.db)")

	var yes bool
	clearCmd := &cobra.Command{
		Use:   "clear-db",
		Short: "Delete every row and reset auto-increment identities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("clear-db is destructive; pass --yes to confirm")
			}
			return withStore(dbPath, func(ctx context.Context, st *sqlite.Store) error {
				if err := st.ClearAll(ctx); err != nil {
					return err
				}
				fmt.Println("database cleared")
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&yes, "yes", false, "Confirm the wipe")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print row counts per table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(dbPath, func(ctx context.Context, st *sqlite.Store) error {
				counts, err := st.Counts(ctx)
				if err != nil {
					return err
				}
				tables := make([]string, 0, len(counts))
				for t := range counts {
					tables = append(tables, t)
				}
				sort.Strings(tables)
				for _, t := range tables {
					fmt.Printf("%-20s %d\n", t, counts[t])
				}
				return nil
			})
		},
	}

	removeTestCmd := &cobra.Command{
		Use:   "remove-test-data",
		Short: "Remove seeded categories, and plans when no active subscription holds them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(dbPath, func(ctx context.Context, st *sqlite.Store) error {
				if err := st.DeleteAllCategories(ctx); err != nil {
					return err
				}
				fmt.Println("categories removed")
				if err := st.DeleteAllPlans(ctx); err != nil {
					fmt.Printf("plans kept: %v\n", err)
					return nil
				}
				fmt.Println("plans removed")
				return nil
			})
		},
	}

	var iconsFile string
	updateIconsCmd := &cobra.Command{
		Use:   "update-icons",
		Short: "Map category slugs to icon glyphs",
		RunE: func(cmd *cobra.Command, args []string) error {
			icons := defaultIcons
			if iconsFile != "" {
				data, err := os.ReadFile(iconsFile)
				if err != nil {
					return fmt.Errorf("read icons file: %w", err)
				}
				icons = map[string]string{}
				if err := yaml.Unmarshal(data, &icons); err != nil {
					return fmt.Errorf("parse icons file: %w", err)
				}
			}
			return withStore(dbPath, func(ctx context.Context, st *sqlite.Store) error {
				svc := catalogsvc.New(st, logger.NewDefault("marketctl"))
				changed, err := svc.UpdateIcons(ctx, icons)
				if err != nil {
					return err
				}
				fmt.Printf("%d categories updated\n", changed)
				return nil
			})
		},
	}
	updateIconsCmd.Flags().StringVar(&iconsFile, "file", "", "YAML file mapping slug to glyph (defaults to the built-in set)")

	root.AddCommand(clearCmd, statsCmd, removeTestCmd, updateIconsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withStore opens the database, applies migrations and runs fn with a
// bounded context.
func withStore(dbPath string, fn func(context.Context, *sqlite.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.OpTimeout)
	defer cancel()

	log := logger.NewDefault("marketctl")
	if err := migrations.Apply(ctx, store.DB().DB, log); err != nil {
		return err
	}
	return fn(ctx, store)
}
