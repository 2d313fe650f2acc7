package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var contractsCmd = &cobra.Command{
	Use:   "contracts",
	Short: "List contracts uploaded to the review backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient()

		contracts, err := client.ListContracts(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(contracts) == 0 {
			fmt.Fprintln(out, "后端暂无合同")
			return nil
		}

		for _, c := range contracts {
			fmt.Fprintf(out, "%s  %-10s  %s  [%s]\n",
				c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Status, c.Title, c.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contractsCmd)
}
