package opticalflow

import (
	"fmt"

	"framecull/internal/models"
	"framecull/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// Detector measures dense Farneback flow between consecutive frames.
type Detector struct {
	params models.FlowParams
}

func NewDetector(params models.FlowParams) *Detector {
	params.BlurSize = models.NormalizeBlurSize(params.BlurSize)
	return &Detector{params: params}
}

func (d *Detector) Kind() models.AlgorithmKind {
	return models.OpticalFlow
}

func (d *Detector) BlurSize() int {
	return d.params.BlurSize
}

func (d *Detector) Close() {}

// Decide keeps curr when the mean flow magnitude over all pixels exceeds
// the threshold.
func (d *Detector) Decide(prev, curr *safe.Mat) (models.FrameDecision, error) {
	if err := safe.ValidatePair(prev, curr, "optical flow"); err != nil {
		return models.FrameDecision{}, err
	}

	if !prev.SameShape(curr) {
		return models.FrameDecision{
			Keep: true,
			Warning: fmt.Sprintf("flow shape mismatch (%dx%d vs %dx%d), keeping frame",
				prev.Cols(), prev.Rows(), curr.Cols(), curr.Rows()),
		}, nil
	}

	magnitude, err := d.MeanMagnitude(prev, curr)
	if err != nil {
		return models.FrameDecision{}, err
	}

	return models.FrameDecision{
		Keep:  magnitude > d.params.Threshold,
		Score: magnitude,
	}, nil
}

// MeanMagnitude is the arithmetic mean of the per-pixel flow magnitude.
func (d *Detector) MeanMagnitude(prev, curr *safe.Mat) (float64, error) {
	if prev.Channels() != 1 || curr.Channels() != 1 {
		return 0, fmt.Errorf("optical flow requires single-channel frames")
	}

	p := d.params
	flow := gocv.NewMat()
	defer flow.Close()
	gocv.CalcOpticalFlowFarneback(prev.GetMat(), curr.GetMat(), &flow,
		p.PyrScale, p.Levels, p.WinSize, p.Iterations, p.PolyN, p.PolySigma, 0)

	if flow.Empty() {
		return 0, fmt.Errorf("optical flow produced no field")
	}

	components := gocv.Split(flow)
	defer func() {
		for _, c := range components {
			c.Close()
		}
	}()
	if len(components) != 2 {
		return 0, fmt.Errorf("expected 2 flow components, got %d", len(components))
	}

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	angle := gocv.NewMat()
	defer angle.Close()
	gocv.CartToPolar(components[0], components[1], &magnitude, &angle, false)

	return magnitude.Mean().Val1, nil
}
