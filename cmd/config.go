package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/houhuawei23/ai-anki-cards/internal/config"
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or show the configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultFile
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s. Set llm.api_key or the provider's API key variable before generating.\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func printConfig(w io.Writer, cfg *config.Config) {
	source := cfg.Source
	if source == "" {
		source = "(defaults and environment)"
	}
	key := "not set"
	if b, ok := llm.LookupBackend(cfg.LLM.Provider); ok && b.ResolveAPIKey(cfg.LLM.APIKey) != "" {
		key = "set"
	}
	baseURL := cfg.LLM.BaseURL
	if baseURL == "" {
		baseURL = "(provider default)"
	}
	count := "auto"
	if cfg.Generation.CardCount > 0 {
		count = fmt.Sprint(cfg.Generation.CardCount)
	}
	cacheState := cfg.Cache.Backend
	if !cfg.Cache.Enabled {
		cacheState = "disabled"
	}

	fmt.Fprintf(w, "Source:       %s\n\n", source)
	fmt.Fprintln(w, "LLM")
	fmt.Fprintf(w, "  Provider:     %s\n", cfg.LLM.Provider)
	fmt.Fprintf(w, "  Model:        %s\n", cfg.LLM.Model)
	fmt.Fprintf(w, "  API key:      %s\n", key)
	fmt.Fprintf(w, "  Base URL:     %s\n", baseURL)
	fmt.Fprintf(w, "  Temperature:  %.2f\n", cfg.LLM.Temperature)
	fmt.Fprintf(w, "  Max tokens:   %d\n", cfg.LLM.MaxTokens)
	fmt.Fprintf(w, "  Timeout:      %ds, %d retries\n", cfg.LLM.Timeout, cfg.LLM.MaxRetries)
	fmt.Fprintln(w, "Generation")
	fmt.Fprintf(w, "  Card type:    %s\n", cfg.Generation.CardType)
	fmt.Fprintf(w, "  Card count:   %s\n", count)
	fmt.Fprintf(w, "  Difficulty:   %s\n", cfg.Generation.Difficulty)
	fmt.Fprintf(w, "  Per request:  %d cards, %d in parallel\n",
		cfg.Generation.MaxCardsPerRequest, cfg.Generation.MaxConcurrentRequests)
	fmt.Fprintln(w, "Cache")
	fmt.Fprintf(w, "  Backend:      %s\n", cacheState)
	fmt.Fprintln(w, "Export")
	fmt.Fprintf(w, "  Format:       %s\n", cfg.Export.Format)
	fmt.Fprintf(w, "  Deck name:    %s\n", cfg.Export.DeckName)

	for _, name := range cfg.Unresolved {
		fmt.Fprintf(w, "\nwarning: ${%s} is not set\n", name)
	}
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
