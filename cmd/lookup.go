package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var lookupUPC string

var lookupCmd = &cobra.Command{
	Use:   "lookup <description>",
	Short: "Match a single free-text description without saving",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		m, st, err := initMatcher(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		d := m.Lookup(ctx, args[0], lookupUPC)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupUPC, "upc", "", "receipt UPC to attach to the decision")
	rootCmd.AddCommand(lookupCmd)
}
