// Command seed-db creates the schema and inserts a set of sample coupons,
// one per variant, for local development and integration testing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promokart/internal/domain/coupon"
	"github.com/xenking/promokart/internal/repository"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seedCoupons(ctx, repository.NewCouponRepository(pool))
}

func seedCoupons(ctx context.Context, repo coupon.Repository) error {
	expires := time.Now().AddDate(0, 1, 0)
	samples := []coupon.Coupon{
		{
			Type:   coupon.TypeCartWise,
			Active: true,
			Details: coupon.CartWiseDetails{
				Threshold:    decimal.NewFromInt(100),
				Discount:     decimal.NewFromInt(10),
				DiscountType: coupon.DiscountPercentage,
			},
		},
		{
			Type:           coupon.TypeProductWise,
			Active:         true,
			MaxRedemptions: 100,
			Details: coupon.ProductWiseDetails{
				ProductID:    1,
				Discount:     decimal.NewFromInt(20),
				DiscountType: coupon.DiscountPercentage,
			},
		},
		{
			Type:      coupon.TypeBxGy,
			Active:    true,
			ExpiresAt: &expires,
			Details: coupon.BxGyDetails{
				BuyProducts: []coupon.ProductQuantity{
					{ProductID: 1, Quantity: 3},
					{ProductID: 2, Quantity: 3},
				},
				GetProducts: []coupon.ProductQuantity{
					{ProductID: 3, Quantity: 1},
				},
				RepetitionLimit: 2,
			},
		},
	}

	for i := range samples {
		if err := repo.Create(ctx, &samples[i]); err != nil {
			return errors.Wrapf(err, "create sample coupon %d", i)
		}
		slog.Info("seeded coupon",
			slog.Int64("id", samples[i].ID),
			slog.String("type", string(samples[i].Type)),
		)
	}
	return nil
}
