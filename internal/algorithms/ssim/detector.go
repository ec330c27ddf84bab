package ssim

import (
	"fmt"

	"framecull/internal/models"
	"framecull/internal/opencv/safe"
)

type Detector struct {
	params models.SSIMParams
}

func NewDetector(params models.SSIMParams) *Detector {
	params.BlurSize = models.NormalizeBlurSize(params.BlurSize)
	return &Detector{params: params}
}

func (d *Detector) Kind() models.AlgorithmKind {
	return models.StructuralSimilarity
}

func (d *Detector) BlurSize() int {
	return d.params.BlurSize
}

func (d *Detector) Close() {}

// Decide keeps curr when its similarity to prev drops below the threshold.
// Mismatched shapes and windows smaller than MinWindow keep the frame and
// carry a warning instead of an index.
func (d *Detector) Decide(prev, curr *safe.Mat) (models.FrameDecision, error) {
	if err := safe.ValidatePair(prev, curr, "ssim"); err != nil {
		return models.FrameDecision{}, err
	}

	if !prev.SameShape(curr) {
		return models.FrameDecision{
			Keep: true,
			Warning: fmt.Sprintf("ssim shape mismatch (%dx%d vs %dx%d), keeping frame",
				prev.Cols(), prev.Rows(), curr.Cols(), curr.Rows()),
		}, nil
	}

	window := ResolveWindow(d.params.BlurSize, prev.Rows(), prev.Cols())
	if window < MinWindow {
		return models.FrameDecision{
			Keep:    true,
			Warning: fmt.Sprintf("ssim window %d below %d, keeping frame", window, MinWindow),
		}, nil
	}

	score, err := Index(prev, curr, window)
	if err != nil {
		return models.FrameDecision{
			Keep:    true,
			Warning: fmt.Sprintf("ssim unavailable (%v), keeping frame", err),
		}, nil
	}

	return models.FrameDecision{
		Keep:  score < d.params.Threshold,
		Score: score,
	}, nil
}
