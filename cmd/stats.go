package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent generation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		runs, err := s.RunRepo().List(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No generation runs recorded yet.")
			return nil
		}

		fmt.Printf("%-19s  %-5s  %-9s  %-24s  %8s  %8s  %8s  %9s\n",
			"Timestamp", "Type", "Cards", "Model", "In", "Out", "Secs", "Cost")
		fmt.Println(strings.Repeat("─", 104))

		var cards, in, out int
		var cost float64
		for _, r := range runs {
			model := truncate(r.Model, 24)
			if r.FromCache {
				model = truncate("(cache) "+r.Model, 24)
			}
			fmt.Printf("%-19s  %-5s  %-9s  %-24s  %8d  %8d  %8.1f  %9s\n",
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				r.CardType,
				fmt.Sprintf("%d/%d", r.Produced, r.Target),
				model,
				r.Data.InputTokens,
				r.Data.OutputTokens,
				float64(r.Data.ElapsedMs)/1000,
				formatCost(r.Data.CostUSD),
			)
			cards += r.Produced
			in += r.Data.InputTokens
			out += r.Data.OutputTokens
			cost += r.Data.CostUSD
		}

		fmt.Println(strings.Repeat("─", 104))
		fmt.Printf("%-19s  %-5s  %-9d  %-24s  %8d  %8d  %8s  %9s\n",
			"TOTAL", "", cards, fmt.Sprintf("%d runs", len(runs)), in, out, "", formatCost(cost))
		return nil
	},
}

func init() {
	statsCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")
}
