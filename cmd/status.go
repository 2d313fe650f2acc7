package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lexsuite/review-cli/internal/preview"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <review-id>",
	Short: "Check the status of a review job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client := newAPIClient()

		rev, err := client.GetReview(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "get review %s", args[0])
		}

		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rev)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "审查 %s: %s\n", rev.ID, rev.Status)
		if rev.ErrorMessage != "" {
			fmt.Fprintf(out, "错误: %s\n", rev.ErrorMessage)
		}
		if rev.Result != nil {
			fmt.Fprint(out, preview.RenderSummary("", rev.Result))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw review as JSON")
	rootCmd.AddCommand(statusCmd)
}
