package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexsuite/review-cli/internal/preview"
	"github.com/lexsuite/review-cli/internal/report"
	"github.com/lexsuite/review-cli/internal/review"
	"github.com/lexsuite/review-cli/pkg/reviewapi"
)

var (
	reviewTitle    string
	reviewView     string
	reviewDownload bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <contract.docx>",
	Short: "Upload a contract, wait for the review, and render the findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		path := args[0]

		extractor, err := newExtractor()
		if err != nil {
			return err
		}
		text, err := extractor.ExtractText(ctx, path)
		if err != nil {
			return eris.Wrapf(err, "extract text from %s", path)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client := newAPIClient()
		snap, _, err := runReview(ctx, client, st, path, reviewTitle)
		if err != nil {
			return err
		}

		switch snap.State {
		case review.StateCompleted:
			// fall through to rendering
		case review.StateTimedOut:
			return eris.New("review timed out, try again or check the backend")
		case review.StateFailed:
			if snap.Err != nil {
				return eris.Wrap(snap.Err, "review failed")
			}
			return eris.New("review failed")
		default:
			return eris.Errorf("review ended in unexpected state %s", snap.State)
		}

		state := preview.NewState()
		state.SetContract(filepath.Base(path), snap.Title, text)
		if snap.Review != nil {
			state.SetResult(snap.Review.Result)
		}

		for _, name := range strings.Split(reviewView, ",") {
			view, err := parseView(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			state.Activate(view)
			fmt.Fprintln(cmd.OutOrStdout(), preview.Render(state.Snapshot(), matchConfig()))
		}

		if reviewDownload && snap.Review != nil {
			if err := downloadArtifacts(ctx, client, snap.Review.ID, snap.Title); err != nil {
				return err
			}
		}
		return nil
	},
}

func parseView(name string) (preview.View, error) {
	switch name {
	case "original":
		return preview.ViewOriginal, nil
	case "summary":
		return preview.ViewSummary, nil
	case "issues":
		return preview.ViewIssues, nil
	case "annotated":
		return preview.ViewAnnotated, nil
	default:
		return 0, eris.Errorf("unknown view %q, expected original, summary, issues, or annotated", name)
	}
}

func downloadArtifacts(ctx context.Context, client reviewapi.Client, reviewID, title string) error {
	doc, err := client.DownloadReviewedDocument(ctx, reviewID)
	if err != nil {
		return eris.Wrap(err, "download reviewed document")
	}
	rep, err := client.DownloadReport(ctx, reviewID)
	if err != nil {
		return eris.Wrap(err, "download report")
	}

	docName := report.ReviewedDocumentName(title)
	repName := report.ReportName(title)
	if cfg.Output.Timestamped {
		now := time.Now()
		docName = report.TimestampedDocumentName(title, now)
		repName = report.TimestampedReportName(title, now)
	}

	docPath, err := report.Write(cfg.Output.Dir, docName, doc)
	if err != nil {
		return err
	}
	repPath, err := report.Write(cfg.Output.Dir, repName, rep)
	if err != nil {
		return err
	}

	zap.L().Info("artifacts saved",
		zap.String("document", docPath),
		zap.String("report", repPath))
	fmt.Fprintf(os.Stdout, "已保存: %s\n已保存: %s\n", docPath, repPath)
	return nil
}

func init() {
	reviewCmd.Flags().StringVar(&reviewTitle, "title", "", "contract title (default: file name without extension)")
	reviewCmd.Flags().StringVar(&reviewView, "view", "summary,annotated", "comma-separated views to render: original, summary, issues, annotated")
	reviewCmd.Flags().BoolVar(&reviewDownload, "download", false, "download the reviewed document and report after completion")
	rootCmd.AddCommand(reviewCmd)
}
