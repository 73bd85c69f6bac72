// Package tokens approximates model token counts from raw text.
package tokens

import (
	"math"
	"unicode"
)

const (
	// DefaultWideRatio is the token cost of one Han character.
	DefaultWideRatio = 0.67
	// DefaultNarrowRatio is the token cost of any other character.
	DefaultNarrowRatio = 0.25
)

// Estimator converts character counts into a token estimate using separate
// ratios for wide (Han) and narrow characters.
type Estimator struct {
	WideRatio   float64
	NarrowRatio float64
}

// Default returns an Estimator with the stock ratios.
func Default() Estimator {
	return Estimator{WideRatio: DefaultWideRatio, NarrowRatio: DefaultNarrowRatio}
}

// New returns an Estimator with the given ratios. Non-positive ratios fall
// back to the defaults.
func New(wide, narrow float64) Estimator {
	e := Default()
	if wide > 0 {
		e.WideRatio = wide
	}
	if narrow > 0 {
		e.NarrowRatio = narrow
	}
	return e
}

// Estimate returns the approximate token count of text. Never less than 1.
func (e Estimator) Estimate(text string) int {
	var wide, narrow int
	for _, r := range text {
		if IsWide(r) {
			wide++
		} else {
			narrow++
		}
	}
	n := int(math.Round(float64(wide)*e.WideRatio + float64(narrow)*e.NarrowRatio))
	if n < 1 {
		return 1
	}
	return n
}

// IsWide reports whether r belongs to the Han script.
func IsWide(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// Counter keeps a running estimate over text that arrives in pieces.
type Counter struct {
	e            Estimator
	wide, narrow int
}

// Counter returns a running counter using e's ratios.
func (e Estimator) Counter() *Counter {
	return &Counter{e: e}
}

// Add accounts for text and returns the estimate of everything added so far.
func (c *Counter) Add(text string) int {
	for _, r := range text {
		if IsWide(r) {
			c.wide++
		} else {
			c.narrow++
		}
	}
	return c.Total()
}

// Total returns the current estimate. Never less than 1.
func (c *Counter) Total() int {
	n := int(math.Round(float64(c.wide)*c.e.WideRatio + float64(c.narrow)*c.e.NarrowRatio))
	if n < 1 {
		return 1
	}
	return n
}
