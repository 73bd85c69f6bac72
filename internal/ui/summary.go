package ui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/cardgen"
	"github.com/houhuawei23/ai-anki-cards/internal/planner"
	"github.com/houhuawei23/ai-anki-cards/internal/ui/theme"
)

// Cost is a priced amount. Known is false when the model has no pricing.
type Cost struct {
	USD   float64
	Known bool
}

func (c Cost) String() string {
	if !c.Known {
		return "n/a"
	}
	return fmt.Sprintf("$%.4f", c.USD)
}

type row struct {
	label, value string
}

// table renders label/value rows inside a titled box.
func table(title string, rows []row, plain bool) string {
	width := 0
	for _, r := range rows {
		width = max(width, len([]rune(r.label)))
	}
	lines := []string{theme.Render(theme.Title, plain, title)}
	for _, r := range rows {
		pad := strings.Repeat(" ", width-len([]rune(r.label)))
		lines = append(lines, theme.Render(theme.Label, plain, r.label+pad)+"  "+theme.Render(theme.Value, plain, r.value))
	}
	body := strings.Join(lines, "\n")
	if plain {
		return body
	}
	return theme.Box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderResult summarizes a finished run.
func RenderResult(res *cardgen.Result, cost Cost, plain bool) string {
	s := res.Stats
	rows := []row{
		{"Cards", fmt.Sprintf("%d / %d", len(res.Cards), res.Target)},
	}
	if res.FromCache {
		rows = append(rows, row{"Source", "cache"})
	} else {
		chunks := fmt.Sprintf("%d", s.Chunks)
		if s.FailedChunks > 0 {
			chunks += fmt.Sprintf(" (%d failed)", s.FailedChunks)
		}
		rows = append(rows, row{"Chunks", chunks})
	}
	rows = append(rows,
		row{"Input tokens", tokenCount(s.InputTokens, s.CacheHitTokens)},
		row{"Output tokens", fmt.Sprintf("%d", s.OutputTokens)},
		row{"Elapsed", res.Elapsed.Round(10 * time.Millisecond).String()},
	)
	if tps := s.TokensPerSecond(); tps > 0 {
		rows = append(rows, row{"Throughput", fmt.Sprintf("%.1f tokens/s", tps)})
	}
	rows = append(rows, row{"Cost", cost.String()})
	return table("Generation summary", rows, plain)
}

func tokenCount(total, cacheHit int) string {
	if cacheHit == 0 {
		return fmt.Sprintf("%d", total)
	}
	return fmt.Sprintf("%d (%d cached)", total, cacheHit)
}

// RenderEstimate describes a dry run.
func RenderEstimate(model string, cardType card.Type, e planner.Estimate, plain bool) string {
	cost := Cost{USD: e.CostUSD, Known: e.CostAvailable}
	rows := []row{
		{"Model", model},
		{"Card type", string(cardType)},
		{"Target cards", fmt.Sprintf("%d", e.Target)},
		{"Requests", fmt.Sprintf("%d × %d cards", e.Plan.NumChunks, e.Plan.CardsPerChunk)},
		{"Max tokens/request", fmt.Sprintf("%d", e.Plan.MaxTokensPerRequest)},
		{"Input tokens", fmt.Sprintf("~%d", e.InputTokens)},
		{"Output tokens", fmt.Sprintf("~%d", e.OutputTokens)},
		{"Time", fmt.Sprintf("~%s sequential, ~%s parallel", seconds(e.Seconds), seconds(e.ParallelSecs))},
		{"Cost", cost.String()},
	}
	return table("Estimate (dry run)", rows, plain)
}

func seconds(s float64) string {
	return (time.Duration(s * float64(time.Second))).Round(time.Second).String()
}

// RenderCards previews up to limit cards.
func RenderCards(cards []card.Card, limit int, plain bool) string {
	var b strings.Builder
	for i, c := range cards {
		if limit > 0 && i >= limit {
			fmt.Fprintf(&b, "%s\n", theme.Render(theme.Hint, plain, fmt.Sprintf("… %d more", len(cards)-limit)))
			break
		}
		fmt.Fprintf(&b, "%s %s\n", theme.Render(theme.Label, plain, fmt.Sprintf("%3d.", i+1)), theme.Render(theme.Value, plain, oneLine(c.Front)))
		switch c.Type {
		case card.TypeBasic:
			fmt.Fprintf(&b, "     %s\n", oneLine(c.Back))
		case card.TypeMCQ:
			for j, o := range c.Options {
				mark := " "
				if o.Correct {
					mark = theme.Render(theme.Ok, plain, "✓")
				}
				fmt.Fprintf(&b, "     %s %s. %s\n", mark, card.OptionLetter(j), oneLine(o.Text))
			}
		}
		if len(c.Tags) > 0 {
			fmt.Fprintf(&b, "     %s\n", theme.Render(theme.Hint, plain, strings.Join(c.Tags, " ")))
		}
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "<br>", " ")
}
