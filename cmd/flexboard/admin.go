package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"flexboard/internal/auth"
	"flexboard/internal/model"
	"flexboard/internal/pkg/db"
	"flexboard/internal/repository"
	"flexboard/internal/service"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			pool.Close()
			return nil
		},
	}
}

// archiveService builds the snapshot service against a migrated store.
func archiveService(cmd *cobra.Command) (*service.SnapshotService, *db.Pool, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}

	ledgerRepo := repository.NewLedgerRepository(pool.Pool)
	rankings := service.NewRankingService(ledgerRepo, repository.NewUserRepository(pool.Pool),
		cfg.Leaderboard.DefaultPageSize, cfg.Leaderboard.MaxPageSize)
	return service.NewSnapshotService(rankings, ledgerRepo, repository.NewArchiveRepository(pool.Pool), cfg.Leaderboard.SnapshotTopN), pool, nil
}

func resetCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:       "reset monthly|weekly",
		Short:     "Archive and close the previous monthly or weekly period",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(model.Monthly), string(model.Weekly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			period, err := model.ParseLeaderboardType(args[0])
			if err != nil {
				return err
			}
			if period != model.Monthly && period != model.Weekly {
				return fmt.Errorf("only monthly and weekly leaderboards can be reset, got %q", args[0])
			}

			snapshots, pool, err := archiveService(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			var result *model.ResetResult
			if period == model.Monthly {
				result, err = snapshots.ResetMonthly(cmd.Context(), region)
			} else {
				result, err = snapshots.ResetWeekly(cmd.Context(), region)
			}
			if err != nil {
				return err
			}

			evt := log.Info().
				Str("leaderboard_type", string(result.LeaderboardType)).
				Str("region", region).
				Time("period_start", result.PeriodStart).
				Int64("total_participants", result.TotalParticipants)
			if result.TopUser != nil {
				evt = evt.Str("top_user", result.TopUser.Username).Int64("top_points", result.TopUser.TotalFlexPoints)
			}
			evt.Msg("Period reset")
			return nil
		},
	}
	cmd.Flags().StringVarP(&region, "region", "r", "", "restrict the reset to one region")
	return cmd
}

func snapshotCmd() *cobra.Command {
	var (
		typeName string
		region   string
		topN     int
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Archive the current top-N of a leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := model.ParseScope(typeName, region)
			if err != nil {
				return err
			}

			snapshots, pool, err := archiveService(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			snap, err := snapshots.CreateLeaderboardSnapshot(cmd.Context(), scope, topN)
			if err != nil {
				return err
			}
			log.Info().
				Int64("snapshot_id", snap.ID).
				Str("scope", scope.Key()).
				Int("entries", len(snap.Entries)).
				Msg("Snapshot created")
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", string(model.Global), "leaderboard type (global, monthly, weekly, regional)")
	cmd.Flags().StringVarP(&region, "region", "r", "", "region filter, required for regional")
	cmd.Flags().IntVarP(&topN, "top-n", "n", 0, "entries to keep (0 uses leaderboard.snapshot_top_n)")
	return cmd
}

// tokenCmd issues an access token for local testing and operator use.
func tokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not set")
			}
			token, err := auth.NewVerifier(cfg.Auth.JWTSecret).Issue(userID, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id to embed")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
