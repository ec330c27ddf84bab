package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"framecull/internal/algorithms/framediff"
	"framecull/internal/models"
	"framecull/internal/opencv/safe"
	"framecull/internal/processing/filters"
	"framecull/internal/video"

	"gocv.io/x/gocv"
)

// DefaultPreviewFrame is the frame inspected when none is requested.
const DefaultPreviewFrame = 100

// PreviewJob inspects one frame pair with the frame-difference detector so
// thresholds can be tuned before a full run. A negative Frame selects
// DefaultPreviewFrame.
type PreviewJob struct {
	Input  string
	Frame  int
	Params models.FrameDiffParams
	OutDir string
}

type PreviewResult struct {
	FrameIndex  int
	Decision    models.FrameDecision
	RegionsPath string
	MaskPath    string
}

var regionColor = color.RGBA{R: 255, A: 255}

// Preview compares frame N with N+1. N is clamped so both frames exist.
func (r *Retention) Preview(ctx context.Context, job PreviewJob) (PreviewResult, error) {
	source, err := r.codec.Open(job.Input)
	if err != nil {
		return PreviewResult{}, err
	}
	defer source.Close()

	meta := source.Metadata()
	if err := meta.Validate(); err != nil {
		return PreviewResult{}, err
	}
	if meta.FrameCount < 2 {
		return PreviewResult{}, fmt.Errorf("%w: preview needs at least 2 frames, got %d",
			models.ErrInvalidMetadata, meta.FrameCount)
	}

	index := job.Frame
	if index < 0 {
		index = DefaultPreviewFrame
	}
	index = min(index, meta.FrameCount-2)

	first, second, err := r.readPair(ctx, source, index)
	if err != nil {
		return PreviewResult{}, err
	}
	defer first.Close()
	defer second.Close()

	detector := framediff.NewDetector(job.Params)
	pre := filters.NewPreprocessor(detector.BlurSize(), r.allocator())

	prev, err := pre.Process(ctx, first)
	if err != nil {
		return PreviewResult{}, err
	}
	defer pre.Release(prev)
	curr, err := pre.Process(ctx, second)
	if err != nil {
		return PreviewResult{}, err
	}
	defer pre.Release(curr)

	decision, err := detector.Decide(prev, curr)
	if err != nil {
		return PreviewResult{}, err
	}

	result := PreviewResult{FrameIndex: index, Decision: decision}

	r.logger.Info("Preview", "preview computed", map[string]interface{}{
		"input":   job.Input,
		"frame":   index,
		"keep":    decision.Keep,
		"regions": len(decision.Regions),
	})

	if job.OutDir == "" {
		return result, nil
	}

	if err := os.MkdirAll(job.OutDir, 0o755); err != nil {
		return result, fmt.Errorf("%w %s: %v", ErrOutputDir, job.OutDir, err)
	}

	result.RegionsPath = filepath.Join(job.OutDir, fmt.Sprintf("preview_%d_regions.png", index))
	if err := writeRegions(result.RegionsPath, second, decision.Regions); err != nil {
		return result, err
	}

	mask, err := detector.Mask(prev, curr)
	if err != nil {
		return result, err
	}
	defer mask.Close()

	result.MaskPath = filepath.Join(job.OutDir, fmt.Sprintf("preview_%d_mask.png", index))
	if err := video.WriteImage(result.MaskPath, mask); err != nil {
		return result, err
	}

	return result, nil
}

func (r *Retention) readPair(ctx context.Context, source video.Source, index int) (*safe.Mat, *safe.Mat, error) {
	if seeker, ok := source.(video.Seeker); ok {
		if err := seeker.Seek(index); err != nil {
			return nil, nil, err
		}
	} else {
		for i := 0; i < index; i++ {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			frame, err := source.ReadFrame()
			if err != nil {
				return nil, nil, fmt.Errorf("skip to frame %d: %w", index, err)
			}
			frame.Close()
		}
	}

	first, err := source.ReadFrame()
	if err != nil {
		return nil, nil, fmt.Errorf("read frame %d: %w", index, err)
	}
	second, err := source.ReadFrame()
	if err != nil {
		first.Close()
		return nil, nil, fmt.Errorf("read frame %d: %w", index+1, err)
	}
	return first, second, nil
}

func writeRegions(path string, frame *safe.Mat, regions []models.Region) error {
	canvas, err := frame.Clone()
	if err != nil {
		return err
	}
	defer canvas.Close()

	img := canvas.GetMat()
	for _, region := range regions {
		gocv.Rectangle(&img, region.Bounds, regionColor, 2)
	}
	return video.WriteImage(path, canvas)
}
