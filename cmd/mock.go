package cmd

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
	"github.com/houhuawei23/ai-anki-cards/internal/tokens"
)

var exactCount = regexp.MustCompile(`exactly (\d+)`)

// mockResponder answers each prompt with as many placeholder cards as it
// asks for, so the whole pipeline runs offline with --provider mock. Usage
// is estimated with est.
func mockResponder(t card.Type, est tokens.Estimator) func(llm.Request) llm.MockResponse {
	seq := 0
	est = tokens.New(est.WideRatio, est.NarrowRatio)
	return func(req llm.Request) llm.MockResponse {
		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[len(req.Messages)-1].Content
		}
		n := 1
		if m := exactCount.FindStringSubmatch(prompt); m != nil {
			n, _ = strconv.Atoi(m[1])
		}

		cards := make([]map[string]any, 0, n)
		for range n {
			seq++
			switch t {
			case card.TypeCloze:
				cards = append(cards, map[string]any{
					"Text": fmt.Sprintf("Placeholder fact {{c1::%d}}.", seq),
				})
			case card.TypeMCQ:
				cards = append(cards, map[string]any{
					"Question": fmt.Sprintf("Placeholder question %d?", seq),
					"OptionA":  "Correct",
					"OptionB":  "Wrong",
					"OptionC":  "Also wrong",
					"Answer":   "A",
					"Note":     "Generated by the mock provider.",
				})
			default:
				cards = append(cards, map[string]any{
					"Front": fmt.Sprintf("Placeholder question %d?", seq),
					"Back":  "Placeholder answer.",
				})
			}
		}

		data, _ := json.Marshal(map[string]any{"cards": cards})
		in, out := est.Estimate(prompt), est.Estimate(string(data))
		return llm.MockResponse{
			Content: string(data),
			Usage:   llm.Usage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
		}
	}
}
