// cmd/seeder/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unclebandit/outreach-engine/internal/config"
	"github.com/unclebandit/outreach-engine/internal/db"
	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/logging"
	"github.com/unclebandit/outreach-engine/internal/repository"
	"github.com/unclebandit/outreach-engine/internal/service"
)

var (
	envFile string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Prepare the outreach database",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(envFile); err != nil {
			return err
		}
		logger, err = logging.New(cfg.LogLevel)
		return err
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
			if err := db.Migrate(ctx, conn); err != nil {
				return err
			}
			fmt.Println("Schema applied")
			return nil
		})
	},
}

var seedCatalogCmd = &cobra.Command{
	Use:   "seed-catalog",
	Short: "Store the built-in campaigns as the editable catalog",
	Long: `Store the built-in campaigns as the editable catalog.

Does nothing when a catalog has already been saved.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
			repo := &repository.CatalogRepository{DB: conn}
			c := service.DefaultCatalog()
			c.BuiltIn = false
			err := repo.Save(ctx, c, "seeder")
			if errors.Is(err, appErrors.ErrCatalogConflict) {
				fmt.Println("Catalog already exists, left unchanged")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d campaigns (version %d)\n", len(c.Campaigns), c.Version)
			return nil
		})
	},
}

var seedProspectsCmd = &cobra.Command{
	Use:   "seed-prospects <file.yaml>",
	Short: "Upsert prospects from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		prospects, err := parseProspects(data, time.Now())
		if err != nil {
			return err
		}
		return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
			repo := &repository.ProspectRepository{DB: conn}
			for _, p := range prospects {
				if err := repo.Upsert(ctx, p); err != nil {
					return fmt.Errorf("upsert %s: %w", p.ID, err)
				}
			}
			fmt.Printf("Seeded %d prospects from %s\n", len(prospects), args[0])
			return nil
		})
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe <email>...",
	Short: "Add addresses to the unsubscribe list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, conn *sql.DB) error {
			repo := &repository.UnsubscribeRepository{DB: conn}
			for _, email := range args {
				if err := repo.Add(ctx, email); err != nil {
					return err
				}
			}
			fmt.Printf("Unsubscribed %d addresses\n", len(args))
			return nil
		})
	},
}

func withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	conn, err := db.Open(ctx, cfg.DSN(), logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, conn)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file")
	rootCmd.AddCommand(migrateCmd, seedCatalogCmd, seedProspectsCmd, unsubscribeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
