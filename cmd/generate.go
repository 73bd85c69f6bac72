package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/houhuawei23/ai-anki-cards/internal/cache"
	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/cardgen"
	"github.com/houhuawei23/ai-anki-cards/internal/config"
	"github.com/houhuawei23/ai-anki-cards/internal/export"
	"github.com/houhuawei23/ai-anki-cards/internal/input"
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
	"github.com/houhuawei23/ai-anki-cards/internal/logger"
	"github.com/houhuawei23/ai-anki-cards/internal/modelinfo"
	"github.com/houhuawei23/ai-anki-cards/internal/prompt"
	"github.com/houhuawei23/ai-anki-cards/internal/store"
	"github.com/houhuawei23/ai-anki-cards/internal/tags"
	"github.com/houhuawei23/ai-anki-cards/internal/tracing"
	"github.com/houhuawei23/ai-anki-cards/internal/ui"
)

// runHistory is how many runs the database keeps.
const runHistory = 500

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate cards from a file or directory of notes",
	Example: "  ankigen generate -i notes/ -o deck.txt -t cloze -n 40\n" +
		"  ankigen generate -i chapter.md -o cards.json --dry-run --show-prompt",
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringP("input", "i", "", "Input file or directory of .txt/.md files")
	f.StringP("output", "o", "", "Output file")
	f.StringP("card-type", "t", "", "Card type: basic, cloze or mcq")
	f.IntP("num-cards", "n", 0, "Number of cards (0 derives it from the input length)")
	f.String("provider", "", "LLM provider ("+strings.Join(llm.BackendNames(), ", ")+")")
	f.StringP("model-name", "m", "", "Model name")
	f.StringP("prompt", "p", "", "Custom prompt template, or @file to read one")
	f.String("export-format", "", "Export format: json, jsonl, csv, txt or yaml (default from -o extension)")
	f.String("deck-name", "", "Deck name written to txt exports")
	f.String("tags-file", "", "YAML file of required and optional tags")
	f.Bool("dry-run", false, "Show the plan and estimate without calling the model")
	f.Bool("show-prompt", false, "Print the rendered prompts")
	f.Bool("no-cache", false, "Skip the result cache")
	f.Bool("save-responses", false, "Save raw model responses and prompts next to the output")
	f.Bool("trace", false, "Print OpenTelemetry spans to stderr")

	_ = generateCmd.MarkFlagRequired("input")
}

// applyFlags overrides configuration values with the flags that were set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("provider") {
		cfg.LLM.Provider, _ = f.GetString("provider")
		if !f.Changed("model-name") {
			cfg.LLM.Model = ""
		}
	}
	if f.Changed("model-name") {
		cfg.LLM.Model, _ = f.GetString("model-name")
	}
	if f.Changed("card-type") {
		cfg.Generation.CardType, _ = f.GetString("card-type")
	}
	if f.Changed("num-cards") {
		cfg.Generation.CardCount, _ = f.GetInt("num-cards")
	}
	if f.Changed("prompt") {
		p, _ := f.GetString("prompt")
		if path, ok := strings.CutPrefix(p, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read prompt file: %w", err)
			}
			p = string(data)
		}
		cfg.Generation.CustomPrompt = p
	}
	if f.Changed("tags-file") {
		cfg.Generation.TagsFile, _ = f.GetString("tags-file")
	}
	if f.Changed("export-format") {
		cfg.Export.Format, _ = f.GetString("export-format")
	}
	if f.Changed("deck-name") {
		cfg.Export.DeckName, _ = f.GetString("deck-name")
	}
	if noCache, _ := f.GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	return cfg.Validate()
}

// outputFormat picks --export-format, then the output extension, then
// the configured default.
func outputFormat(cmd *cobra.Command, cfg *config.Config, output string) (export.Format, error) {
	if !cmd.Flags().Changed("export-format") {
		if f, ok := export.FormatFromPath(output); ok {
			return f, nil
		}
	}
	return export.ParseFormat(cfg.Export.Format)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	for _, name := range cfg.Unresolved {
		log.Warn("config references unset environment variable", zap.String("var", name))
	}

	if on, _ := cmd.Flags().GetBool("trace"); on {
		shutdown, err := tracing.Setup(ctx, os.Stderr, version)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	showPrompt, _ := cmd.Flags().GetBool("show-prompt")
	saveResponses, _ := cmd.Flags().GetBool("save-responses")
	inPath, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	if output == "" && !dryRun {
		return errors.New("--output is required")
	}

	format, err := outputFormat(cmd, cfg, output)
	if err != nil {
		return err
	}

	content, err := input.ReadAll(inPath)
	if err != nil {
		return err
	}
	log.Info("input loaded", zap.String("path", inPath), zap.Int("chars", len([]rune(content))))

	var tagSet tags.Set
	if cfg.Generation.TagsFile != "" {
		if tagSet, err = tags.Load(cfg.Generation.TagsFile); err != nil {
			return err
		}
	}

	catalog, err := modelinfo.Load(cfg.ModelInfo)
	if err != nil {
		return err
	}

	client := cfg.LLM.LLMClient()
	backend, _ := llm.LookupBackend(client.Provider)
	model := backend.ResolveModel(client.Model)
	profile, _ := catalog.Lookup(model)
	client.Estimator = profile.Estimator()

	gcfg := cardgen.DefaultConfig()
	gcfg.Sampling = client
	gcfg.Model = model
	gcfg.Catalog = catalog
	gcfg.Dedup = cfg.Generation.EnableDeduplication
	gcfg.Stream = cfg.Generation.Stream
	gcfg.Validators = nil
	if cfg.Generation.EnableQualityFilter {
		gcfg.Validators = cardgen.DefaultValidators(cfg.Generation.SingleAnswer)
	}
	gcfg.Logger = log

	req := cardgen.Request{
		Content:          content,
		CardType:         card.Type(cfg.Generation.CardType),
		Count:            cfg.Generation.CardCount,
		Difficulty:       cfg.Generation.Difficulty,
		CustomPrompt:     cfg.Generation.CustomPrompt,
		RequiredTags:     tagSet.Required,
		OptionalTags:     tagSet.Optional,
		MaxCardsPerChunk: cfg.Generation.MaxCardsPerRequest,
		MaxConcurrency:   cfg.Generation.MaxConcurrentRequests,
	}
	out := cmd.OutOrStdout()
	plain := !isTerminal(out)

	if dryRun {
		gen := cardgen.New(llm.NewMockProvider(), prompt.MustLoad(), gcfg)
		p, err := gen.Preview(req)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, ui.RenderEstimate(model, req.CardType, p.Estimate, plain))
		if showPrompt {
			printPrompts(out, p.Prompts)
		}
		return nil
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	provider, err := newProvider(ctx, client, req.CardType, st.EventRepo(), log)
	if err != nil {
		return err
	}

	resultCache, err := cache.Open(ctx, cfg.Cache.Options(), st)
	if err != nil {
		return err
	}
	if c, ok := resultCache.(io.Closer); ok {
		defer c.Close()
	}
	gcfg.Cache = resultCache

	progress := ui.NewProgress(out, plain)
	gcfg.Progress = progress

	runID := uuid.NewString()
	ctx = llm.WithRun(ctx, runID)

	gen := cardgen.New(provider, prompt.MustLoad(), gcfg)
	res, err := gen.Generate(ctx, req)
	if err != nil {
		return err
	}

	if showPrompt {
		printPrompts(out, res.Stats.Prompts)
	}
	if saveResponses || len(res.Cards) == 0 {
		if err := export.SaveResponses(export.SidecarPath(output, ".responses.json"), res.Stats.Responses); err != nil {
			log.Warn("saving responses failed", zap.Error(err))
		}
		if err := export.SavePrompts(export.SidecarPath(output, ".prompt.md"), res.Stats.Prompts); err != nil {
			log.Warn("saving prompts failed", zap.Error(err))
		}
	}

	usd, priced := gen.Cost(res.Stats)
	recordRun(ctx, st.RunRepo(), runID, req.CardType, client.Provider, model, res, usd, inPath, log)

	if len(res.Cards) == 0 && res.FromCache {
		return errors.New("the cached result for this input has no cards; rerun with --no-cache")
	}
	if len(res.Cards) == 0 {
		return fmt.Errorf("no cards were generated; raw responses saved to %s",
			export.SidecarPath(output, ".responses.json"))
	}

	if err := export.WriteFile(output, format, res.Cards, export.Options{DeckName: cfg.Export.DeckName}); err != nil {
		return err
	}

	fmt.Fprintln(out, ui.RenderResult(res, ui.Cost{USD: usd, Known: priced}, plain))
	fmt.Fprintf(out, "Wrote %d %s cards to %s (%s)\n", len(res.Cards), req.CardType, output, format)
	return nil
}

// newProvider builds the wrapped client. The mock provider answers with
// placeholder cards of cardType.
func newProvider(ctx context.Context, client llm.Config, cardType card.Type, events store.EventRepo, log *zap.Logger) (llm.Provider, error) {
	if client.Provider == "mock" {
		mock := llm.NewMockProvider()
		mock.Respond = mockResponder(cardType, client.Estimator)
		mock.Estimator = client.Estimator
		return llm.Wrap(mock, client, "mock", events, log), nil
	}
	if err := client.Validate(); err != nil {
		return nil, err
	}
	return llm.NewProvider(ctx, client, events, log)
}

func recordRun(ctx context.Context, runs store.RunRepo, id string, cardType card.Type, provider, model string, res *cardgen.Result, usd float64, source string, log *zap.Logger) {
	run := &store.Run{
		ID:        id,
		CardType:  string(cardType),
		Target:    res.Target,
		Produced:  len(res.Cards),
		Provider:  provider,
		Model:     model,
		FromCache: res.FromCache,
		Data: store.RunData{
			Chunks:         res.Stats.Chunks,
			FailedChunks:   res.Stats.FailedChunks,
			InputTokens:    res.Stats.InputTokens,
			OutputTokens:   res.Stats.OutputTokens,
			CacheHitTokens: res.Stats.CacheHitTokens,
			CostUSD:        usd,
			ElapsedMs:      res.Elapsed.Milliseconds(),
			Source:         source,
		},
	}
	if err := runs.Save(ctx, run); err != nil {
		log.Warn("recording run failed", zap.Error(err))
		return
	}
	if err := runs.Prune(ctx, runHistory); err != nil {
		log.Warn("pruning run history failed", zap.Error(err))
	}
}

func printPrompts(w io.Writer, prompts []string) {
	sep := strings.Repeat("─", 60)
	for i, p := range prompts {
		fmt.Fprintln(w, sep)
		fmt.Fprintf(w, "PROMPT %d/%d\n", i+1, len(prompts))
		fmt.Fprintln(w, sep)
		fmt.Fprintln(w, p)
	}
}

// isTerminal reports whether w is an interactive terminal. Anything else
// gets plain output.
func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
