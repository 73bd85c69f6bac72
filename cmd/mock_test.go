package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/houhuawei23/ai-anki-cards/internal/card"
	"github.com/houhuawei23/ai-anki-cards/internal/cardgen"
	"github.com/houhuawei23/ai-anki-cards/internal/llm"
	"github.com/houhuawei23/ai-anki-cards/internal/tokens"
)

func TestMockResponderMatchesRequestedCount(t *testing.T) {
	for _, ct := range card.Types {
		t.Run(string(ct), func(t *testing.T) {
			est := tokens.New(0.6, 0.3)
			respond := mockResponder(ct, est)
			resp := respond(llm.UserRequest("Please write exactly 7 cards."))
			records := cardgen.ParseRecords(resp.Content)
			require.Len(t, records, 7)
			for _, rec := range records {
				_, err := cardgen.Assemble(rec, ct)
				assert.NoError(t, err)
			}
			assert.Equal(t, est.Estimate(resp.Content), resp.Usage.OutputTokens)
		})
	}
}
