package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"escrow-market/internal/config"
	"escrow-market/internal/database"
	"escrow-market/internal/jobs"
	"escrow-market/internal/logger"
	"escrow-market/internal/models"
	"escrow-market/internal/repository"
	"escrow-market/internal/services"
)

func main() {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Database maintenance for the escrow marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	autoCmd := &cobra.Command{
		Use:   "auto",
		Short: "Create or update tables from the models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, zl, err := connect()
			if err != nil {
				return err
			}
			defer zl.Sync()
			return database.AutoMigrate(zl)
		},
	}

	applyCmd := &cobra.Command{
		Use:   "apply <file-or-dir>...",
		Short: "Apply raw SQL migration files to PostgreSQL, in name order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), args)
		},
	}

	var role string
	grantCmd := &cobra.Command{
		Use:   "grant-support <username>",
		Short: "Make a member support staff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, zl, err := connect()
			if err != nil {
				return err
			}
			defer zl.Sync()

			repo := repository.NewRepository(database.GetDB())
			admin, err := services.NewAdminService(repo, nil, zl).GrantRole(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s (staff id %d)\n", args[0], admin.Role, admin.ID)
			return nil
		},
	}
	grantCmd.Flags().StringVar(&role, "role", models.AdminRoleSupport, "Staff role: SUPPORT or SUPER_ADMIN")

	expireCmd := &cobra.Command{
		Use:   "expire-deals",
		Short: "Cancel overdue pending deals once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zl, err := connect()
			if err != nil {
				return err
			}
			defer zl.Sync()

			repo := repository.NewRepository(database.GetDB())
			deals := services.NewDealService(repo, services.FeeScheduleFromConfig(cfg.Fees),
				repository.NewSQLActivityLog(database.GetDB()), zl)
			n := jobs.NewDealExpiryJob(deals, cfg.App.DealExpiryInterval, zl).RunOnce(cmd.Context())
			fmt.Printf("expired %d deals\n", n)
			return nil
		},
	}

	root.AddCommand(autoCmd, applyCmd, grantCmd, expireCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func connect() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	zl, err := logger.New(cfg.Server.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN(), zl); err != nil {
		return nil, nil, err
	}
	return cfg, zl, nil
}

// runApply executes each SQL file in its own transaction. Directories are
// expanded to their *.sql files.
func runApply(ctx context.Context, paths []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return errors.New("apply only supports DB_DRIVER=postgres")
	}

	files, err := expandSQLFiles(paths)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	for _, file := range files {
		if err := applyFile(ctx, db, file); err != nil {
			return err
		}
		fmt.Printf("applied %s\n", file)
	}
	return nil
}

func applyFile(ctx context.Context, db *sql.DB, file string) error {
	body, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply %s: %w", file, err)
	}
	return tx.Commit()
}

func expandSQLFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.sql"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	return files, nil
}
