package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"framecull/internal/logger"
	"framecull/internal/models"
	"framecull/internal/video"

	"github.com/google/uuid"
)

// BatchJob runs the same algorithm and parameters over Inputs, writing
// every output into OutputDir.
type BatchJob struct {
	Inputs    []string
	OutputDir string
	Algorithm models.AlgorithmKind
	Params    models.ProcessingParameters
	Reverse   bool
}

// Batch runs one retention job per input, strictly in list order.
type Batch struct {
	retention *Retention
	logger    logger.Logger
}

type BatchOption func(*Batch)

func WithBatchLogger(log logger.Logger) BatchOption {
	return func(b *Batch) {
		b.logger = log
	}
}

func NewBatch(retention *Retention, opts ...BatchOption) *Batch {
	b := &Batch{
		retention: retention,
		logger:    retention.logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// batchRunState lives for one Run call.
type batchRunState struct {
	id      uuid.UUID
	current int
	summary models.BatchSummary
}

// Run processes every input and always ends with BatchFinished. A failed
// file is recorded and the batch moves on. Once ctx is cancelled the
// running file stops at its next checkpoint and no further file starts.
func (b *Batch) Run(ctx context.Context, job BatchJob, obs BatchObserver) models.BatchSummary {
	if obs == nil {
		obs = BaseBatchObserver{}
	}

	state := &batchRunState{id: uuid.New()}
	state.summary = models.BatchSummary{ID: state.id, Total: len(job.Inputs)}

	fields := map[string]interface{}{
		"batch_id":   state.id.String(),
		"files":      len(job.Inputs),
		"output_dir": job.OutputDir,
		"algorithm":  job.Algorithm.String(),
	}

	if len(job.Inputs) == 0 {
		b.logger.Warning("Batch", "batch started with empty input list", fields)
		obs.BatchFinished(state.summary)
		return state.summary
	}

	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		state.summary.Err = fmt.Errorf("%w %s: %v", ErrOutputDir, job.OutputDir, err)
		b.logger.Error("Batch", state.summary.Err, fields)
		obs.BatchError(state.summary.Err)
		obs.BatchFinished(state.summary)
		return state.summary
	}

	b.logger.Info("Batch", "batch started", fields)
	started := time.Now()

	for i, input := range job.Inputs {
		if ctx.Err() != nil {
			b.logger.Info("Batch", "batch cancelled before next file", map[string]interface{}{
				"batch_id":  state.id.String(),
				"remaining": len(job.Inputs) - i,
			})
			break
		}

		state.current = i
		b.runFile(ctx, job, input, state, obs)

		obs.OverallProgress(float64(i+1) / float64(len(job.Inputs)) * 100)
	}

	b.logger.Info("Batch", "batch finished", map[string]interface{}{
		"batch_id":    state.id.String(),
		"succeeded":   state.summary.Succeeded,
		"failed":      state.summary.Failed,
		"cancelled":   state.summary.Cancelled,
		"duration_ms": time.Since(started).Milliseconds(),
	})

	obs.BatchFinished(state.summary)
	return state.summary
}

func (b *Batch) runFile(ctx context.Context, job BatchJob, input string, state *batchRunState, obs BatchObserver) {
	name := filepath.Base(input)

	b.logger.Info("Batch", "starting file", map[string]interface{}{
		"batch_id": state.id.String(),
		"file":     name,
		"index":    state.current + 1,
		"total":    len(job.Inputs),
	})
	obs.FileStarted(name)

	fileJob := Job{
		Input:     input,
		Output:    video.BatchOutputPath(job.OutputDir, input),
		Algorithm: job.Algorithm,
		Params:    job.Params,
		Reverse:   job.Reverse,
	}

	progress := ObserverFunc(func(p models.Progress) {
		obs.FileProgress(name, p)
	})

	result := b.retention.Run(ctx, fileJob, progress)
	state.summary.Record(name, result)

	switch result.Status {
	case models.StatusSuccess:
		obs.FileFinished(name, result)
	case models.StatusCancelled:
		obs.FileCancelled(name, result)
	default:
		obs.FileError(name, result)
	}
}
