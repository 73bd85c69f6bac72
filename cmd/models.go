package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/houhuawei23/ai-anki-cards/internal/llm"
	"github.com/houhuawei23/ai-anki-cards/internal/modelinfo"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models with output limits and pricing",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog, err := modelinfo.Load(cfg.ModelInfo)
		if err != nil {
			return err
		}

		fmt.Printf("%-28s  %-10s  %8s  %8s  %8s  %8s  %8s\n",
			"Model", "Provider", "Context", "MaxOut", "In/M", "Hit/M", "Out/M")
		fmt.Println(strings.Repeat("─", 92))

		n := 0
		for _, name := range catalog.Names() {
			p, _ := catalog.Lookup(name)
			if provider != "" && p.Provider != provider {
				continue
			}
			fmt.Printf("%-28s  %-10s  %8d  %8d  %8.3f  %8.3f  %8.3f\n",
				truncate(name, 28), p.Provider, p.ContextLength, p.MaxOutput.Maximum,
				p.Pricing.Input, p.Pricing.InputCacheHit, p.Pricing.Output)
			n++
		}

		fmt.Printf("\n%d models. Providers: %s\n", n, strings.Join(llm.BackendNames(), ", "))
		return nil
	},
}

func init() {
	modelsCmd.Flags().String("provider", "", "Filter by provider (e.g. deepseek)")
}
