package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/receipt-matcher/internal/model"
)

var (
	matchDocID  string
	matchNoSave bool
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match all unmatched receipt items of one document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		m, st, err := initMatcher(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		decisions, err := m.Run(ctx, matchDocID, !matchNoSave)
		if err != nil {
			// Decisions computed before the failure are still worth printing.
			if len(decisions) > 0 {
				printDecisions(decisions)
			}
			return err
		}

		printDecisions(decisions)
		return nil
	},
}

func printDecisions(decisions []model.MatchDecision) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(decisions)
}

func init() {
	matchCmd.Flags().StringVar(&matchDocID, "doc", "", "docupanda document ID (required)")
	matchCmd.Flags().BoolVar(&matchNoSave, "no-save", false, "report matches without writing mappings")
	_ = matchCmd.MarkFlagRequired("doc")
	rootCmd.AddCommand(matchCmd)
}
