package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	e := Default()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty floors at one", "", 1},
		{"short ascii floors at one", "a", 1},
		{"ascii", strings.Repeat("a", 400), 100},
		{"han", strings.Repeat("中", 100), 67},
		{"mixed", strings.Repeat("中", 100) + strings.Repeat("a", 40), 77},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewFallsBackToDefaults(t *testing.T) {
	e := New(0, -1)
	if e.WideRatio != DefaultWideRatio || e.NarrowRatio != DefaultNarrowRatio {
		t.Fatalf("New(0, -1) = %+v, want defaults", e)
	}

	e = New(1, 0.5)
	if got := e.Estimate("ab中"); got != 2 {
		t.Errorf("custom ratios: got %d, want 2", got)
	}
}

func TestIsWide(t *testing.T) {
	if !IsWide('字') {
		t.Error("expected Han rune to be wide")
	}
	if IsWide('x') || IsWide('é') || IsWide('。') {
		t.Error("expected non-Han runes to be narrow")
	}
}

func TestCounterMatchesEstimate(t *testing.T) {
	e := Default()
	pieces := []string{"Hello, ", "世界", "! streaming ", "文本"}
	c := e.Counter()
	var whole string
	for _, p := range pieces {
		whole += p
		if got, want := c.Add(p), e.Estimate(whole); got != want {
			t.Fatalf("after %q: counter = %d, estimate = %d", whole, got, want)
		}
	}
}
