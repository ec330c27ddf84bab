package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"framecull/internal/config"
	"framecull/internal/models"
	"framecull/internal/pipeline"
	"framecull/internal/video"
)

// Tuning overrides single parameters of the selected algorithm. Unset
// flags keep the configured value.
type Tuning struct {
	Threshold *float64 `help:"Detector threshold: 8-bit difference (framediff), similarity index (ssim) or mean flow magnitude (flow)."`
	MinArea   *int     `help:"Minimum changed-region area in pixels (framediff only)."`
	BlurSize  *int     `help:"Gaussian kernel size used before comparison; even values are rounded up."`
}

func (t Tuning) apply(kind models.AlgorithmKind, p models.ProcessingParameters) models.ProcessingParameters {
	switch kind {
	case models.FrameDifference:
		if t.Threshold != nil {
			p.FrameDiff.Threshold = int(math.Round(*t.Threshold))
		}
		if t.MinArea != nil {
			p.FrameDiff.MinArea = *t.MinArea
		}
		if t.BlurSize != nil {
			p.FrameDiff.BlurSize = *t.BlurSize
		}
	case models.StructuralSimilarity:
		if t.Threshold != nil {
			p.SSIM.Threshold = *t.Threshold
		}
		if t.BlurSize != nil {
			p.SSIM.BlurSize = *t.BlurSize
		}
	case models.OpticalFlow:
		if t.Threshold != nil {
			p.Flow.Threshold = *t.Threshold
		}
		if t.BlurSize != nil {
			p.Flow.BlurSize = *t.BlurSize
		}
	}
	return p.Normalized()
}

// Selection chooses the detector for process and batch.
type Selection struct {
	Algorithm string `short:"a" help:"Change detector: framediff, ssim or flow." placeholder:"NAME"`
	Preset    string `short:"p" help:"Parameter preset, see 'framecull presets'." placeholder:"NAME"`
	Reverse   bool   `short:"r" help:"Write the retained frames in reverse order."`

	Tuning `embed:""`
}

type settings struct {
	kind    models.AlgorithmKind
	params  models.ProcessingParameters
	reverse bool
}

// resolve layers the preset, the algorithm flag and the tuning flags over
// cfg without modifying it.
func (s Selection) resolve(cfg *config.Config) (settings, error) {
	c := *cfg
	if s.Preset != "" {
		if err := c.ApplyPreset(s.Preset); err != nil {
			return settings{}, err
		}
	}
	if s.Algorithm != "" {
		kind, err := models.ParseAlgorithmKind(s.Algorithm)
		if err != nil {
			return settings{}, err
		}
		c.Algorithm = kind
	}

	params := s.Tuning.apply(c.Algorithm, c.Params)
	if err := params.Validate(c.Algorithm); err != nil {
		return settings{}, err
	}

	return settings{
		kind:    c.Algorithm,
		params:  params,
		reverse: s.Reverse || c.Reverse,
	}, nil
}

type ProcessCmd struct {
	Input  string `arg:"" help:"Video file to process." type:"existingfile"`
	Output string `short:"o" help:"Output file (default: <input>_<algorithm>.mp4 next to the input)." type:"path"`

	Selection `embed:""`
}

func (cmd *ProcessCmd) Run(app *App) error {
	s, err := cmd.resolve(app.cfg)
	if err != nil {
		return err
	}

	job := pipeline.Job{
		Input:     cmd.Input,
		Output:    cmd.Output,
		Algorithm: s.kind,
		Params:    s.params,
		Reverse:   s.reverse,
	}

	fmt.Fprintln(app.stdout, headerStyle.Render(fmt.Sprintf("framecull %s", Version)))
	fmt.Fprintln(app.stdout, processingStyle.Render(fmt.Sprintf("Processing %s with %s", cmd.Input, s.kind)))

	bar := newFrameBar(app.stderr, "frames")
	result := app.retention.Run(app.context(), job, bar)
	bar.finish(result.Status == models.StatusSuccess)

	renderResult(app.stdout, result)

	switch result.Status {
	case models.StatusSuccess:
		return nil
	case models.StatusCancelled:
		return context.Canceled
	default:
		return result.Err
	}
}

type BatchCmd struct {
	Inputs    []string `arg:"" help:"Video files or directories containing videos." type:"path"`
	OutputDir string   `short:"d" help:"Directory receiving processed_<name>.mp4 files (default from config)." type:"path"`

	Selection `embed:""`
}

var errNoInputs = errors.New("no video files found")

func (cmd *BatchCmd) Run(app *App) error {
	s, err := cmd.resolve(app.cfg)
	if err != nil {
		return err
	}

	inputs, err := video.ExpandInputs(cmd.Inputs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errNoInputs
	}

	outputDir := cmd.OutputDir
	if outputDir == "" {
		outputDir = app.cfg.OutputDir
	}

	job := pipeline.BatchJob{
		Inputs:    inputs,
		OutputDir: outputDir,
		Algorithm: s.kind,
		Params:    s.params,
		Reverse:   s.reverse,
	}

	fmt.Fprintln(app.stdout, headerStyle.Render(fmt.Sprintf("framecull %s", Version)))
	fmt.Fprintln(app.stdout, processingStyle.Render(fmt.Sprintf("Processing %d files with %s into %s", len(inputs), s.kind, outputDir)))

	batch := pipeline.NewBatch(app.retention, pipeline.WithBatchLogger(app.log))
	summary := batch.Run(app.context(), job, newBatchProgress(app.stdout, app.stderr, len(inputs)))

	renderBatchSummary(app.stdout, summary)
	return batchError(summary)
}

func batchError(summary models.BatchSummary) error {
	switch {
	case summary.Err != nil:
		return summary.Err
	case summary.Cancelled > 0 || len(summary.Results) < summary.Total:
		return context.Canceled
	case summary.Failed > 0:
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Total)
	default:
		return nil
	}
}

type PreviewCmd struct {
	Input  string `arg:"" help:"Video file to inspect." type:"existingfile"`
	Frame  *int   `short:"f" help:"Index of the first frame of the pair (default from config)."`
	OutDir string `help:"Write preview_<N>_regions.png and preview_<N>_mask.png here." type:"path"`

	Tuning `embed:""`
}

func (cmd *PreviewCmd) Run(app *App) error {
	params := cmd.Tuning.apply(models.FrameDifference, app.cfg.Params)
	if err := params.Validate(models.FrameDifference); err != nil {
		return err
	}

	result, err := app.retention.Preview(app.context(), pipeline.PreviewJob{
		Input:  cmd.Input,
		Frame:  cmd.frameIndex(app.cfg),
		Params: params.FrameDiff,
		OutDir: cmd.OutDir,
	})
	if err != nil {
		return err
	}

	renderPreview(app.stdout, result)
	return nil
}

// frameIndex prefers the flag, including an explicit 0, over the config.
func (cmd *PreviewCmd) frameIndex(cfg *config.Config) int {
	if cmd.Frame != nil {
		return *cmd.Frame
	}
	return cfg.PreviewFrame
}

type PresetsCmd struct{}

func (cmd *PresetsCmd) Run(app *App) error {
	renderPresets(app.stdout, config.Presets(), app.detectors.GetAvailableAlgorithms())
	return nil
}
