package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lexsuite/review-cli/internal/review"
	"github.com/lexsuite/review-cli/internal/store"
	"github.com/lexsuite/review-cli/pkg/reviewapi"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Review every .docx contract in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		contracts, err := collectContracts(args[0])
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client := newAPIClient()
		return processBatch(ctx, client, st, contracts, batchLimit, cfg.Batch.MaxConcurrentReviews)
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of contracts to review (0 = all)")
	rootCmd.AddCommand(batchCmd)
}

// collectContracts returns the .docx files directly inside dir, sorted.
func collectContracts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read directory %s", dir)
	}

	var contracts []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".docx") {
			contracts = append(contracts, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(contracts)
	return contracts, nil
}

// processBatch reviews contracts concurrently. Individual failures are
// logged and counted but do not abort the batch.
func processBatch(ctx context.Context, client reviewapi.Client, st store.Store, contracts []string, limit, concurrency int) error {
	if len(contracts) == 0 {
		zap.L().Info("no contracts found")
		return nil
	}
	if limit > 0 && len(contracts) > limit {
		contracts = contracts[:limit]
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("contracts", len(contracts)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, path := range contracts {
		g.Go(func() error {
			log := zap.L().With(zap.String("contract", path))

			snap, _, err := runReview(gctx, client, st, path, "")
			if err != nil || snap.State != review.StateCompleted {
				failed.Add(1)
				if err == nil {
					err = snap.Err
				}
				log.Error("review failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			if snap.Review != nil && snap.Review.Result != nil {
				counts := snap.Review.Result.Recount()
				log.Info("review complete",
					zap.Int("issues", counts.Total()),
					zap.Int("high_risk", counts.High),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}
