// Package ui renders ankigen's terminal output: live chunk progress and
// the end-of-run summaries.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/houhuawei23/ai-anki-cards/internal/ui/components"
	"github.com/houhuawei23/ai-anki-cards/internal/ui/theme"
)

type taskState struct {
	quota  int
	tokens int
	cards  int
	done   bool
	err    error
}

// Progress prints one line per finished chunk and, for multi-chunk runs,
// the overall bar.
// It implements cardgen.Reporter and is safe for concurrent use.
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	plain bool
	width int
	tasks map[int]*taskState
	total int
}

// NewProgress writes to w. plain disables colors.
func NewProgress(w io.Writer, plain bool) *Progress {
	return &Progress{w: w, plain: plain, width: 40, tasks: make(map[int]*taskState)}
}

func (p *Progress) Start(task, total, quota int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.tasks[task] = &taskState{quota: quota}
}

func (p *Progress) Update(task, tokens int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.tasks[task]; ok {
		st.tokens = tokens
	}
}

func (p *Progress) Done(task, cards int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.tasks[task]
	if !ok {
		st = &taskState{}
		p.tasks[task] = st
	}
	st.done, st.cards, st.err = true, cards, err

	var status string
	if err != nil {
		status = theme.Render(theme.Failed, p.plain, "✗") + " " + theme.Render(theme.Warn, p.plain, err.Error())
	} else {
		status = theme.Render(theme.Ok, p.plain, "✓") + fmt.Sprintf(" %d/%d cards", cards, st.quota)
		if st.tokens > 0 {
			status += theme.Render(theme.Label, p.plain, fmt.Sprintf(" · %d tokens", st.tokens))
		}
	}
	fmt.Fprintf(p.w, "  chunk %d/%d %s\n", task+1, max(p.total, 1), status)

	finished := p.finished()
	bar := components.ProgressBar{
		Label:       fmt.Sprintf("%d/%d", finished, max(p.total, 1)),
		Percent:     float64(finished) / float64(max(p.total, 1)),
		ShowPercent: true,
		Width:       p.width,
		Plain:       p.plain,
	}
	if p.total > 1 {
		fmt.Fprintf(p.w, "  %s\n", bar.View())
	}
}

// Cards returns the number of cards reported so far.
func (p *Progress) Cards() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, st := range p.tasks {
		n += st.cards
	}
	return n
}

func (p *Progress) finished() int {
	n := 0
	for _, st := range p.tasks {
		if st.done {
			n++
		}
	}
	return n
}
