//go:build integration

package repository

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"escrow-market/internal/database"
	"escrow-market/internal/models"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// openPostgres starts a throwaway Postgres 16 container, or reuses
// TEST_PG_DSN when set, and returns a migrated handle with the SQL
// constraints applied.
func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		pg, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("escrow_test"),
			postgres.WithUsername("escrow"),
			postgres.WithPassword("escrow"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Skipf("postgres container unavailable: %v", err)
		}
		t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

		dsn, err = pg.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("connection string: %v", err)
		}
	}

	db, err := database.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	constraints, err := os.ReadFile("../../migrations/001_constraints.sql")
	if err != nil {
		t.Fatalf("read constraints: %v", err)
	}
	if err := db.Exec(string(constraints)).Error; err != nil {
		t.Fatalf("apply constraints: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestPostgresConcurrentDebitsNeverOverdraw(t *testing.T) {
	r := NewRepository(openPostgres(t))
	u := seedUser(t, r, "pg_debits", 1000)
	ctx := context.Background()

	var ok, short atomic.Int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			err := r.Transaction(ctx, func(tx *Repository) error {
				return tx.DebitWallet(ctx, u.ID, decimal.NewFromInt(100))
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientFunds):
				short.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("debit: %v", err)
	}

	if ok.Load() != 10 || short.Load() != 10 {
		t.Fatalf("succeeded=%d rejected=%d, want 10/10", ok.Load(), short.Load())
	}
	got, err := r.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.WalletBalance.IsZero() {
		t.Fatalf("balance = %s, want 0", got.WalletBalance)
	}
}

func TestPostgresBalanceCheckConstraint(t *testing.T) {
	db := openPostgres(t)
	r := NewRepository(db)
	u := seedUser(t, r, "pg_check", 50)

	err := db.Model(&models.User{}).Where("id = ?", u.ID).
		Update("wallet_balance", gorm.Expr("wallet_balance - ?", 100)).Error
	if err == nil {
		t.Fatal("expected check constraint violation")
	}
}

func TestPostgresDuplicateIdempotencyKey(t *testing.T) {
	r := NewRepository(openPostgres(t))
	u := seedUser(t, r, "pg_idem", 0)
	ctx := context.Background()

	if err := r.SaveIdempotencyKey(ctx, &models.IdempotencyKey{UserID: u.ID, Key: "k1", Scope: "wallet_topup"}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	err := r.SaveIdempotencyKey(ctx, &models.IdempotencyKey{UserID: u.ID, Key: "k1", Scope: "wallet_topup"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
