package main

import (
	"github.com/spf13/cobra"
)

var downloadTitle string

var downloadCmd = &cobra.Command{
	Use:   "download <review-id>",
	Short: "Download the reviewed document and report for a completed review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := downloadTitle
		if title == "" {
			title = args[0]
		}
		return downloadArtifacts(cmd.Context(), newAPIClient(), args[0], title)
	},
}

func init() {
	downloadCmd.Flags().StringVar(&downloadTitle, "title", "", "contract title used in artifact file names (default: review id)")
	rootCmd.AddCommand(downloadCmd)
}
