package components

import (
	"strings"
	"testing"
)

func TestProgressBarView(t *testing.T) {
	tests := []struct {
		name    string
		bar     ProgressBar
		filled  int
		empty   int
		percent string
	}{
		{"half", ProgressBar{Percent: 0.5, Width: 10, Plain: true}, 5, 5, ""},
		{"over full clamps", ProgressBar{Percent: 1.5, Width: 10, Plain: true}, 10, 0, ""},
		{"negative clamps", ProgressBar{Percent: -1, Width: 10, Plain: true}, 0, 10, ""},
		{"minimum width", ProgressBar{Percent: 1, Width: 1, Plain: true}, 4, 0, ""},
		{"with percent", ProgressBar{Percent: 0.25, Width: 14, ShowPercent: true, Plain: true}, 2, 6, "  25%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.bar.View()
			if n := strings.Count(got, "█"); n != tt.filled {
				t.Errorf("filled = %d, want %d (%q)", n, tt.filled, got)
			}
			if n := strings.Count(got, "░"); n != tt.empty {
				t.Errorf("empty = %d, want %d (%q)", n, tt.empty, got)
			}
			if tt.percent != "" && !strings.HasSuffix(got, tt.percent) {
				t.Errorf("missing percent suffix %q in %q", tt.percent, got)
			}
		})
	}
}

func TestProgressBarLabel(t *testing.T) {
	got := NewProgressBar("chunks", 0, false, 20).View()
	if !strings.HasPrefix(got, "chunks  ") {
		t.Errorf("View() = %q, want label prefix", got)
	}
}
