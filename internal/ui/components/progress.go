package components

import (
	"fmt"
	"strings"

	"github.com/houhuawei23/ai-anki-cards/internal/ui/theme"
)

// ProgressBar displays a horizontal progress bar.
type ProgressBar struct {
	Label       string
	Percent     float64
	ShowPercent bool
	Width       int

	// Plain drops colors for non-terminal output.
	Plain bool
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(label string, percent float64, showPercent bool, width int) ProgressBar {
	return ProgressBar{
		Label:       label,
		Percent:     percent,
		ShowPercent: showPercent,
		Width:       width,
	}
}

// View renders the progress bar.
func (p ProgressBar) View() string {
	var result string

	if p.Label != "" {
		result += p.Label + "  "
	}

	percentWidth := 0
	if p.ShowPercent {
		percentWidth = 6 // "  100%"
	}

	barWidth := max(p.Width-len([]rune(result))-percentWidth, 4)
	filled := min(max(int(float64(barWidth)*p.Percent), 0), barWidth)

	result += theme.Render(theme.ProgressFilled, p.Plain, strings.Repeat("█", filled))
	result += theme.Render(theme.ProgressEmpty, p.Plain, strings.Repeat("░", barWidth-filled))

	if p.ShowPercent {
		result += theme.Render(theme.Label, p.Plain, fmt.Sprintf("  %d%%", int(p.Percent*100)))
	}

	return result
}
