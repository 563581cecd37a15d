// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/perfect-fit/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of answers to display per batch
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		for _, wrapped := range wrap(line, boxWidth-4) {
			fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, wrapped)
		}
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintScore outputs one scored answer with the model's reasoning.
func (p *Printer) PrintScore(item types.ScoringItem, score int, reasoning string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Question: %s\n", item.Question))
	sb.WriteString(fmt.Sprintf("Answer:   %s\n", item.Answer))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Score:    %d/%d %s\n", score, types.MaxScore, scoreBar(score)))
	sb.WriteString("\n")
	sb.WriteString(reasoning)

	p.printBox("ANSWER SCORE", sb.String())
}

// PrintScoredBatch outputs a summary of one processed scoring batch.
func (p *Printer) PrintScoredBatch(batch *types.ScoringBatch, results []types.ScoredAnswer) {
	if batch == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Application: %s\n", batch.ApplicationID))
	sb.WriteString(fmt.Sprintf("Submission:  %s\n", batch.SubmissionID))

	failed, total := 0, 0
	for _, r := range results {
		total += r.Score
		if r.Failed {
			failed++
		}
	}
	sb.WriteString(fmt.Sprintf("Answers:     %d (%d failed)\n", len(results), failed))
	if scored := len(results) - failed; scored > 0 {
		sb.WriteString(fmt.Sprintf("Mean score:  %.1f\n", float64(total)/float64(scored)))
	}
	sb.WriteString("\n")

	count := min(len(results), maxItemsToShow)
	for i := 0; i < count; i++ {
		r := results[i]
		status := fmt.Sprintf("%2d %s", r.Score, scoreBar(r.Score))
		if r.Failed {
			status = " - failed"
		}
		sb.WriteString(fmt.Sprintf("#%d %s\n", i+1, status))
	}
	if len(results) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more\n", len(results)-maxItemsToShow))
	}

	p.printBox("SCORED SUBMISSION", strings.TrimSuffix(sb.String(), "\n"))
}

// scoreBar renders a 0..10 score as a fixed-width bar.
func scoreBar(score int) string {
	score = max(types.MinScore, min(score, types.MaxScore))
	return "[" + strings.Repeat("#", score) + strings.Repeat(".", types.MaxScore-score) + "]"
}

// wrap splits s into lines of at most width runes, breaking on spaces when possible.
func wrap(s string, width int) []string {
	runes := []rune(s)
	if len(runes) <= width {
		return []string{s}
	}

	var lines []string
	for len(runes) > width {
		cut := width
		for i := width; i > width/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		lines = append(lines, strings.TrimRight(string(runes[:cut]), " "))
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
