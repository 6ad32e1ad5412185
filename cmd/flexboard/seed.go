package main

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"flexboard/internal/model"
	"flexboard/internal/repository"
)

type userCreator interface {
	Create(ctx context.Context, username string, region *string) (*model.User, error)
}

type ledgerWriter interface {
	Create(ctx context.Context, userID string, amount decimal.Decimal, flexPoints int64) (*model.Transaction, error)
	Complete(ctx context.Context, id int64) (*model.Transaction, error)
	Fail(ctx context.Context, id int64) (*model.Transaction, error)
}

type seedOptions struct {
	Users     int
	TxPerUser int
	Regions   []string
	FailEvery int
	Seed      uint64
}

type seedSummary struct {
	Users     int
	Completed int
	Failed    int
}

// pointsPerUnit converts a purchase amount into flex points.
const pointsPerUnit = 10

// seedLedger creates users spread round-robin over regions and gives each a
// run of purchases. Every FailEvery-th purchase fails; the rest complete, so
// each completion fires the live update pipeline when a server is listening.
func seedLedger(ctx context.Context, users userCreator, txs ledgerWriter, opts seedOptions) (seedSummary, error) {
	var sum seedSummary
	if opts.Users < 1 || opts.TxPerUser < 0 {
		return sum, fmt.Errorf("users must be positive and transactions non-negative")
	}
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	n := 0
	for i := range opts.Users {
		var region *string
		if len(opts.Regions) > 0 {
			r := opts.Regions[i%len(opts.Regions)]
			region = &r
		}
		user, err := users.Create(ctx, fmt.Sprintf("player%03d", i+1), region)
		if err != nil {
			return sum, err
		}
		sum.Users++

		for range opts.TxPerUser {
			units := rng.Int64N(100) + 1
			tx, err := txs.Create(ctx, user.ID, decimal.NewFromInt(units), units*pointsPerUnit)
			if err != nil {
				return sum, err
			}

			n++
			if opts.FailEvery > 0 && n%opts.FailEvery == 0 {
				if _, err := txs.Fail(ctx, tx.ID); err != nil {
					return sum, err
				}
				sum.Failed++
				continue
			}
			if _, err := txs.Complete(ctx, tx.ID); err != nil {
				return sum, err
			}
			sum.Completed++
		}
	}
	return sum, nil
}

func seedCmd() *cobra.Command {
	var opts seedOptions

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the ledger with demo users and purchases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if len(opts.Regions) == 0 {
				opts.Regions = cfg.Leaderboard.Regions
			}
			sum, err := seedLedger(cmd.Context(),
				repository.NewUserRepository(pool.Pool),
				repository.NewTransactionRepository(pool.Pool),
				opts)
			if err != nil {
				return err
			}

			log.Info().
				Int("users", sum.Users).
				Int("completed", sum.Completed).
				Int("failed", sum.Failed).
				Msg("Ledger seeded")
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Users, "users", "u", 20, "users to create")
	cmd.Flags().IntVarP(&opts.TxPerUser, "transactions", "n", 5, "purchases per user")
	cmd.Flags().StringSliceVarP(&opts.Regions, "regions", "r", nil, "regions to spread users over (defaults to leaderboard.regions)")
	cmd.Flags().IntVar(&opts.FailEvery, "fail-every", 7, "fail every n-th purchase (0 completes all)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed for purchase amounts")
	return cmd
}
