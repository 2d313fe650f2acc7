package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexsuite/review-cli/internal/model"
	"github.com/lexsuite/review-cli/internal/store"
)

var (
	historyStatus string
	historyTitle  string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past reviews from the local history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListRecords(ctx, store.RecordFilter{
			Status: model.ReviewStatus(historyStatus),
			Title:  historyTitle,
			Limit:  historyLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "暂无审查记录")
			return nil
		}

		for _, r := range records {
			line := fmt.Sprintf("%s  %-9s  %s", r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Status, r.Title)
			if r.Result != nil {
				counts := r.Result.Recount()
				line += fmt.Sprintf("  (高%d 中%d 低%d)", counts.High, counts.Medium, counts.Low)
			}
			if r.ErrorMessage != "" {
				line += "  " + r.ErrorMessage
			}
			fmt.Fprintf(out, "%s  [%s]\n", line, r.ID)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status (pending, processing, completed, failed)")
	historyCmd.Flags().StringVar(&historyTitle, "title", "", "filter by contract title")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "max records to list")
	rootCmd.AddCommand(historyCmd)
}
