package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/perfect-fit/internal/logger"
	"github.com/jonathan/perfect-fit/internal/scoring"
	"github.com/jonathan/perfect-fit/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultScoringTimeout     = 30 * time.Second
	defaultScoringConcurrency = 4
	maxFailureCauseLength     = 300
)

// ResultStore persists terminal scoring outcomes.
type ResultStore interface {
	SaveScoredResponses(ctx context.Context, applicationID, submissionID uuid.UUID, results []types.ScoredAnswer) (int, error)
}

// Processor scores a batch end to end.
type Processor interface {
	Process(ctx context.Context, batch *types.ScoringBatch) ([]types.ScoredAnswer, error)
}

// OrchestratorOptions tunes the scoring fan-out.
type OrchestratorOptions struct {
	Timeout     time.Duration
	Concurrency int
}

// Orchestrator scores every answer of a batch concurrently and writes the
// outcomes back. A failed answer scores zero; it is never retried here.
type Orchestrator struct {
	scorer      scoring.Scorer
	store       ResultStore
	timeout     time.Duration
	concurrency int
	log         *zap.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

// NewOrchestrator creates an Orchestrator. Zero options take defaults.
func NewOrchestrator(scorer scoring.Scorer, store ResultStore, opts OrchestratorOptions, log *zap.Logger) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultScoringTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultScoringConcurrency
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		scorer:      scorer,
		store:       store,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		log:         log,
	}
}

// Process scores batch and saves the results. The returned error reports
// only a failed write; scorer failures are folded into the results.
func (o *Orchestrator) Process(ctx context.Context, batch *types.ScoringBatch) ([]types.ScoredAnswer, error) {
	results := make([]types.ScoredAnswer, len(batch.Items))

	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)
	for i, item := range batch.Items {
		g.Go(func() error {
			results[i] = o.score(ctx, batch, item)
			return nil
		})
	}
	_ = g.Wait()

	written, err := o.store.SaveScoredResponses(ctx, batch.ApplicationID, batch.SubmissionID, results)
	if err != nil {
		o.log.Error("failed to save scores",
			zap.String("application_id", batch.ApplicationID.String()),
			zap.String("submission_id", batch.SubmissionID.String()),
			zap.Error(err))
		return results, fmt.Errorf("failed to save scores: %w", err)
	}
	if written < len(results) {
		o.log.Info("skipped scores superseded by a newer submission",
			zap.String("application_id", batch.ApplicationID.String()),
			zap.Int("skipped", len(results)-written))
	}

	o.processed.Add(int64(len(results)))
	o.log.Info("scoring batch complete",
		zap.String("application_id", batch.ApplicationID.String()),
		zap.String("submission_id", batch.SubmissionID.String()),
		zap.Int("answers", len(results)),
		zap.Int("written", written))
	return results, nil
}

// Stats returns the number of answers scored and how many of them failed.
func (o *Orchestrator) Stats() (processed, failed int64) {
	return o.processed.Load(), o.failed.Load()
}

func (o *Orchestrator) score(ctx context.Context, batch *types.ScoringBatch, item types.ScoringItem) (out types.ScoredAnswer) {
	out = types.ScoredAnswer{QuestionID: item.QuestionID, Answer: item.Answer}

	fail := func(cause error) {
		o.failed.Add(1)
		o.log.Warn("answer scoring failed",
			zap.String("application_id", batch.ApplicationID.String()),
			zap.String("question_id", item.QuestionID.String()),
			zap.Error(cause))
		out.Score = types.MinScore
		out.Reasoning = types.AnalysisFailedPrefix + logger.Truncate(describe(cause, o.timeout), maxFailureCauseLength)
		out.Failed = true
	}

	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("scorer panic: %v", r))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	result, err := o.scorer.Evaluate(callCtx, item)
	switch {
	case err != nil:
		fail(err)
	case result == nil:
		fail(errors.New("scorer returned no result"))
	case result.Score < types.MinScore || result.Score > types.MaxScore:
		fail(fmt.Errorf("score %d outside %d..%d", result.Score, types.MinScore, types.MaxScore))
	default:
		out.Score = result.Score
		out.Reasoning = result.Reasoning
	}
	return out
}

func describe(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("scoring timed out after %s", timeout)
	}
	return err.Error()
}
