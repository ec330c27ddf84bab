package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"framecull/internal/algorithms"
	"framecull/internal/logger"
	"framecull/internal/metrics"
	"framecull/internal/models"
	"framecull/internal/opencv/memory"
	"framecull/internal/opencv/safe"
	"framecull/internal/processing/chain"
	"framecull/internal/processing/filters"
	"framecull/internal/video"
)

// Job describes one single-video retention run.
type Job struct {
	Input     string
	Output    string
	Algorithm models.AlgorithmKind
	Params    models.ProcessingParameters
	Reverse   bool
}

// OutputPath returns Output, or the name derived from Input and the
// algorithm when Output is empty.
func (j Job) OutputPath() string {
	if j.Output != "" {
		return j.Output
	}
	return video.AutoOutputPath(j.Input, j.Algorithm)
}

// Retention runs the decode, preprocess, detect, collect and write loop
// for one file at a time. It holds no per-job state and may be reused.
type Retention struct {
	codec     video.Codec
	detectors *algorithms.Manager
	logger    logger.Logger
	memory    *memory.Manager
	metrics   metrics.Recorder
	timing    TimingTracker
}

type Option func(*Retention)

func WithLogger(log logger.Logger) Option {
	return func(r *Retention) {
		r.logger = log
	}
}

// WithMemoryManager pools preprocessed frames through m.
func WithMemoryManager(m *memory.Manager) Option {
	return func(r *Retention) {
		r.memory = m
	}
}

func WithMetrics(rec metrics.Recorder) Option {
	return func(r *Retention) {
		r.metrics = rec
	}
}

func WithTimingTracker(t TimingTracker) Option {
	return func(r *Retention) {
		r.timing = t
	}
}

func WithDetectorManager(m *algorithms.Manager) Option {
	return func(r *Retention) {
		r.detectors = m
	}
}

func NewRetention(codec video.Codec, opts ...Option) *Retention {
	r := &Retention{
		codec:     codec,
		detectors: algorithms.NewManager(),
		logger:    logger.Nop(),
		metrics:   metrics.Nop(),
		timing:    nopTiming{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes job to a terminal result. Cancellation of ctx is honored
// before every frame read, before the write phase and before every frame
// write. Failures and panics are converted into a Failed result; Run never
// returns an error of its own.
func (r *Retention) Run(ctx context.Context, job Job, obs Observer) (result models.ProcessingResult) {
	if obs == nil {
		obs = nopObserver{}
	}

	start := time.Now()
	result = models.ProcessingResult{
		Input:  job.Input,
		Output: job.OutputPath(),
	}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic during processing: %v", rec)
			r.fail(&result, err)
		}
		result.Duration = time.Since(start)
		r.metrics.JobFinished(result.Status, result.Duration)
		r.logResult(job, result)
	}()

	r.execute(ctx, job, obs, &result)
	return result
}

type jobState struct {
	source   video.Source
	sink     video.Sink
	pre      *filters.Preprocessor
	detector algorithms.ChangeDetector
	prev     *safe.Mat
	retained []*safe.Mat
}

func (s *jobState) release() {
	for _, f := range s.retained {
		f.Close()
	}
	s.retained = nil
	if s.prev != nil {
		s.pre.Release(s.prev)
		s.prev = nil
	}
	if s.detector != nil {
		s.detector.Close()
	}
	if s.sink != nil {
		s.sink.Close()
	}
	if s.source != nil {
		s.source.Close()
	}
}

func (r *Retention) execute(ctx context.Context, job Job, obs Observer, result *models.ProcessingResult) {
	state := &jobState{}
	defer state.release()

	detector, err := r.detectors.Create(job.Algorithm, job.Params)
	if err != nil {
		r.fail(result, err)
		return
	}
	state.detector = detector
	state.pre = filters.NewPreprocessor(detector.BlurSize(), r.allocator())

	meta, err := r.open(job, state)
	if err != nil {
		r.fail(result, err)
		return
	}
	result.TotalFrames = meta.FrameCount

	if !r.analyze(ctx, job, meta, state, obs, result) {
		return
	}

	if !r.write(ctx, job, state, result) {
		return
	}

	result.Status = models.StatusSuccess
	result.KeptFrames = len(state.retained)
	result.SpeedRestorePercent = models.SpeedRestorePercent(meta.FrameCount, result.KeptFrames, meta.FPS)
	result.Message = "processing completed successfully"
}

// open performs the init phase: source, metadata, output directory, sink.
func (r *Retention) open(job Job, state *jobState) (models.VideoMetadata, error) {
	source, err := r.codec.Open(job.Input)
	if err != nil {
		if !errors.Is(err, video.ErrOpenSource) {
			err = fmt.Errorf("%w %s: %v", video.ErrOpenSource, job.Input, err)
		}
		return models.VideoMetadata{}, err
	}
	state.source = source

	meta, substituted := source.Metadata().WithFallbackFPS()
	if substituted {
		r.logger.Warning("Retention", "invalid frame rate, assuming default", map[string]interface{}{
			"input": job.Input,
			"fps":   models.DefaultFPS,
		})
	}
	if err := meta.Validate(); err != nil {
		return meta, err
	}

	r.logger.Info("Retention", "video opened", map[string]interface{}{
		"input":     job.Input,
		"frames":    meta.FrameCount,
		"fps":       meta.FPS,
		"width":     meta.Width,
		"height":    meta.Height,
		"algorithm": job.Algorithm.String(),
		"steps":     state.pre.Steps(),
	})

	output := job.OutputPath()
	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return meta, fmt.Errorf("%w %s: %v", video.ErrCreateSink, output, err)
		}
	}

	sink, err := r.codec.CreateSink(output, meta)
	if err != nil {
		if !errors.Is(err, video.ErrCreateSink) {
			err = fmt.Errorf("%w %s: %v", video.ErrCreateSink, output, err)
		}
		return meta, err
	}
	state.sink = sink

	return meta, nil
}

// analyze reads every frame and collects the retained ones. It returns
// false when the job reached a terminal state.
func (r *Retention) analyze(ctx context.Context, job Job, meta models.VideoMetadata, state *jobState, obs Observer, result *models.ProcessingResult) bool {
	total := meta.FrameCount
	kind := state.detector.Kind()
	// Preprocessing runs between checkpoints and must not observe cancellation.
	frameCtx := context.WithoutCancel(ctx)

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			r.cancel(result, state, "analysis")
			return false
		}

		readCtx := r.timing.StartTiming("read_frame")
		frame, err := state.source.ReadFrame()
		r.timing.EndTiming(readCtx)
		if err != nil {
			fields := map[string]interface{}{
				"input": job.Input,
				"frame": i,
				"total": total,
			}
			if !errors.Is(err, io.EOF) {
				fields["error"] = err.Error()
			}
			r.logger.Warning("Retention", "frame read failed, treating as end of stream", fields)
			break
		}

		keep := false
		switch {
		case i == 0:
			keep = true
			state.prev, err = r.preprocess(frameCtx, state.pre, frame)
		case i == total-1:
			keep = true
		default:
			keep, err = r.decide(frameCtx, state, frame, kind, i)
		}
		if err != nil {
			frame.Close()
			r.fail(result, fmt.Errorf("frame %d: %w", i, err))
			return false
		}

		if keep {
			state.retained = append(state.retained, frame)
		} else {
			frame.Close()
		}

		result.ProcessedFrames++
		result.KeptFrames = len(state.retained)
		obs.Progress(models.NewProgress(result.ProcessedFrames, total))
	}

	r.logger.Info("Retention", "analysis complete", map[string]interface{}{
		"input":     job.Input,
		"kept":      len(state.retained),
		"processed": result.ProcessedFrames,
		"total":     total,
	})
	return true
}

func (r *Retention) preprocess(ctx context.Context, pre *filters.Preprocessor, frame *safe.Mat) (*safe.Mat, error) {
	tctx := r.timing.StartTiming("preprocess")
	defer r.timing.EndTiming(tctx)
	return pre.Process(ctx, frame)
}

// decide compares frame with the previous one; the processed frame always
// becomes the new previous, kept or not.
func (r *Retention) decide(ctx context.Context, state *jobState, frame *safe.Mat, kind models.AlgorithmKind, index int) (bool, error) {
	curr, err := r.preprocess(ctx, state.pre, frame)
	if err != nil {
		return false, err
	}

	tctx := r.timing.StartTiming("detect")
	started := time.Now()
	decision, err := state.detector.Decide(state.prev, curr)
	elapsed := time.Since(started)
	r.timing.EndTiming(tctx)

	state.pre.Release(state.prev)
	state.prev = curr

	if err != nil {
		return false, err
	}

	r.metrics.FrameAnalyzed(kind, decision.Keep, elapsed)
	if decision.Warning != "" {
		r.logger.Warning("Retention", decision.Warning, map[string]interface{}{
			"frame":     index,
			"algorithm": kind.String(),
		})
	}
	return decision.Keep, nil
}

// write emits the retained frames, reversed when requested.
func (r *Retention) write(ctx context.Context, job Job, state *jobState, result *models.ProcessingResult) bool {
	if ctx.Err() != nil {
		r.cancel(result, state, "before write")
		return false
	}

	if job.Reverse {
		slices.Reverse(state.retained)
		r.logger.Debug("Retention", "reversing retained frames", map[string]interface{}{
			"frames": len(state.retained),
		})
	}

	tctx := r.timing.StartTiming("write_output")
	defer r.timing.EndTiming(tctx)

	for idx, frame := range state.retained {
		if ctx.Err() != nil {
			r.cancel(result, state, "write")
			return false
		}
		if err := state.sink.WriteFrame(frame); err != nil {
			r.fail(result, fmt.Errorf("write frame %d of %d: %w", idx+1, len(state.retained), err))
			return false
		}
	}
	return true
}

func (r *Retention) allocator() chain.Allocator {
	if r.memory == nil {
		return nil
	}
	return r.memory
}

func (r *Retention) cancel(result *models.ProcessingResult, state *jobState, phase string) {
	result.Status = models.StatusCancelled
	result.KeptFrames = len(state.retained)
	result.Message = "processing cancelled"
	result.Err = context.Canceled
	r.logger.Info("Retention", "processing cancelled", map[string]interface{}{
		"input":     result.Input,
		"phase":     phase,
		"processed": result.ProcessedFrames,
	})
}

func (r *Retention) fail(result *models.ProcessingResult, err error) {
	result.Status = models.StatusFailed
	result.Err = err
	result.Message = fmt.Sprintf("error processing %s: %v", filepath.Base(result.Input), err)
}

func (r *Retention) logResult(job Job, result models.ProcessingResult) {
	fields := map[string]interface{}{
		"input":       job.Input,
		"output":      result.Output,
		"status":      result.Status.String(),
		"kept":        result.KeptFrames,
		"processed":   result.ProcessedFrames,
		"total":       result.TotalFrames,
		"duration_ms": result.Duration.Milliseconds(),
	}
	switch result.Status {
	case models.StatusSuccess:
		fields["speed_restore_percent"] = result.SpeedRestorePercent
		r.logger.Info("Retention", "processing finished", fields)
	case models.StatusFailed:
		r.logger.Error("Retention", result.Err, fields)
	}
}
