package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/observability"
	"github.com/jonathan/perfect-fit/internal/scoring"
	"github.com/jonathan/perfect-fit/internal/types"
	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single answer against its desired answer",
	Long:  "Send one question, desired answer and candidate answer to the configured scoring model and print the structured result. Useful for tuning the scoring prompt.",
	RunE:  runScore,
}

var (
	scoreQuestion string
	scoreDesired  string
	scoreAnswer   string
	scoreOutput   string
	scorePretty   bool
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreQuestion, "question", "q", "", "Question text (required)")
	scoreCmd.Flags().StringVarP(&scoreDesired, "desired", "d", "", "Desired answer (required)")
	scoreCmd.Flags().StringVarP(&scoreAnswer, "answer", "a", "", "Candidate answer (required)")
	scoreCmd.Flags().StringVarP(&scoreOutput, "out", "o", "", "Path to write the result JSON (default: stdout)")
	scoreCmd.Flags().BoolVar(&scorePretty, "pretty", false, "Print a human-readable summary instead of JSON")

	for _, name := range []string{"question", "desired", "answer"} {
		if err := scoreCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ScoringTimeout)
	defer cancel()

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	item := types.ScoringItem{
		QuestionID:    uuid.New(),
		Question:      scoreQuestion,
		DesiredAnswer: scoreDesired,
		Answer:        scoreAnswer,
	}
	result, err := scoring.NewLLMScorer(client).Evaluate(ctx, item)
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	if scorePretty {
		observability.NewPrinter(cmd.OutOrStdout()).PrintScore(item, result.Score, result.Reasoning)
		return nil
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if scoreOutput == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	if err := os.WriteFile(scoreOutput, out, 0644); err != nil {
		return fmt.Errorf("failed to write output file %s: %w", scoreOutput, err)
	}
	return nil
}
