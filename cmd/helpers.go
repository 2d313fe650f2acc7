package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lexsuite/review-cli/internal/extract"
	"github.com/lexsuite/review-cli/internal/match"
	"github.com/lexsuite/review-cli/internal/model"
	"github.com/lexsuite/review-cli/internal/review"
	"github.com/lexsuite/review-cli/internal/store"
	"github.com/lexsuite/review-cli/pkg/reviewapi"
)

func newAPIClient() reviewapi.Client {
	opts := []reviewapi.Option{
		reviewapi.WithBaseURL(cfg.API.BaseURL),
	}
	if cfg.API.TimeoutSecs > 0 {
		opts = append(opts, reviewapi.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.API.TimeoutSecs) * time.Second,
		}))
	}
	if cfg.API.RequestsPerSec > 0 {
		opts = append(opts, reviewapi.WithRateLimit(rate.Limit(cfg.API.RequestsPerSec), cfg.API.Burst))
	}
	return reviewapi.NewClient(opts...)
}

func controllerConfig() review.Config {
	return review.Config{
		MaxFileSize:     cfg.Upload.MaxFileSizeBytes,
		PollInterval:    time.Duration(cfg.Poll.IntervalMillis) * time.Millisecond,
		PollTimeout:     time.Duration(cfg.Poll.TimeoutSecs) * time.Second,
		MaxPollFailures: cfg.Poll.MaxFailures,
	}
}

func matchConfig() match.Config {
	return match.Config{
		MinAcceptScore: cfg.Match.MinAcceptScore,
		FullMatchScore: cfg.Match.FullMatchScore,
		PartScoreScale: cfg.Match.PartScoreScale,
		PartLengthCap:  cfg.Match.PartLengthCap,
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open history store")
	}
	return st, nil
}

func newExtractor() (extract.Extractor, error) {
	return extract.NewExtractor(extract.Config{Provider: cfg.Extract.Provider})
}

// runReview drives one contract through upload, polling, and history
// recording. It returns the final controller snapshot and the history
// record, which carries the result for rendering.
func runReview(ctx context.Context, client reviewapi.Client, st store.Store, path, title string) (review.Snapshot, *model.ReviewRecord, error) {
	ctrl := review.New(client, controllerConfig())
	defer ctrl.Close()

	if err := ctrl.Upload(ctx, path, title); err != nil {
		return ctrl.Snapshot(), nil, err
	}

	started := ctrl.Snapshot()
	var rec *model.ReviewRecord
	if st != nil && started.Review != nil {
		var err error
		rec, err = st.CreateRecord(ctx, model.ReviewRecord{
			ReviewID:   started.Review.ID,
			ContractID: started.Review.ContractID,
			Title:      started.Title,
			FileName:   path,
			Status:     model.ReviewProcessing,
		})
		if err != nil {
			zap.L().Warn("failed to record review in history", zap.Error(err))
		}
	}

	snap, err := ctrl.Wait(ctx)
	if err != nil {
		return snap, rec, err
	}

	if st != nil && rec != nil {
		switch snap.State {
		case review.StateCompleted:
			if snap.Review != nil && snap.Review.Result != nil {
				if err := st.SetRecordResult(ctx, rec.ID, snap.Review.Result); err != nil {
					zap.L().Warn("failed to store review result", zap.Error(err))
				}
				rec.Result = snap.Review.Result
				rec.Status = model.ReviewCompleted
			}
		case review.StateFailed, review.StateTimedOut:
			msg := ""
			if snap.Err != nil {
				msg = snap.Err.Error()
			}
			if err := st.UpdateRecordStatus(ctx, rec.ID, model.ReviewFailed, msg); err != nil {
				zap.L().Warn("failed to update review status", zap.Error(err))
			}
			rec.Status = model.ReviewFailed
			rec.ErrorMessage = msg
		}
	}

	return snap, rec, nil
}
