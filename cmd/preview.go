package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/cardgen"
	"github.com/houhuawei23/ai-anki-cards/internal/input"
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
	"github.com/houhuawei23/ai-anki-cards/internal/logger"
	"github.com/houhuawei23/ai-anki-cards/internal/prompt"
	"github.com/houhuawei23/ai-anki-cards/internal/ui"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Generate a few cards and print them (no database, no cache)",
	Long: `Generate a handful of cards from a file and print them to the terminal.

This is a stateless developer tool: no config file, no database, no cache, no export.
The provider is discovered from the usual API key environment variables.
Useful for checking prompt and card quality on a small sample.`,
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringP("input", "i", "", "Input file or directory (required)")
	previewCmd.Flags().StringP("card-type", "t", "basic", "Card type: basic, cloze or mcq")
	previewCmd.Flags().IntP("num-cards", "n", 5, "Number of cards to generate")
	_ = previewCmd.MarkFlagRequired("input")
}

func runPreview(cmd *cobra.Command, args []string) error {
	inPath, _ := cmd.Flags().GetString("input")
	typeVal, _ := cmd.Flags().GetString("card-type")
	count, _ := cmd.Flags().GetInt("num-cards")

	cardType := card.Type(typeVal)
	if !cardType.Valid() {
		return fmt.Errorf("invalid card type %q: must be basic, cloze or mcq", typeVal)
	}

	content, err := input.ReadAll(inPath)
	if err != nil {
		return err
	}

	level := "warn"
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = "debug"
	}
	log, err := logger.New(level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// No EventRepo: nothing is recorded.
	ctx := context.Background()
	client, ok := llm.DiscoverConfig()
	if !ok {
		return fmt.Errorf("no LLM API key found in the environment")
	}
	provider, err := llm.NewProvider(ctx, client, nil, log)
	if err != nil {
		return fmt.Errorf("LLM provider: %w", err)
	}

	cfg := cardgen.DefaultConfig()
	cfg.Sampling = client
	cfg.Logger = log
	gen := cardgen.New(provider, prompt.MustLoad(), cfg)

	fmt.Fprintf(os.Stderr, "Generating %d %s cards with %s...\n", count, cardType, provider.ModelID())
	res, err := gen.Generate(ctx, cardgen.Request{Content: content, CardType: cardType, Count: count})
	if err != nil {
		return err
	}
	if len(res.Cards) == 0 {
		return fmt.Errorf("the model returned no usable cards")
	}

	fmt.Print(ui.RenderCards(res.Cards, 0, !isTerminal(os.Stdout)))
	return nil
}
