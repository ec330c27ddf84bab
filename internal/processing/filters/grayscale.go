package filters

import (
	"context"
	"fmt"

	"framecull/internal/opencv/safe"
	"framecull/internal/processing/chain"

	"gocv.io/x/gocv"
)

// GrayscaleConverter reduces BGR, BGRA or single-channel frames to CV8UC1.
type GrayscaleConverter struct{}

func NewGrayscaleConverter() *GrayscaleConverter {
	return &GrayscaleConverter{}
}

func (g *GrayscaleConverter) Name() string {
	return "grayscale_converter"
}

func (g *GrayscaleConverter) ShouldExecute() bool {
	return true
}

func (g *GrayscaleConverter) Apply(ctx context.Context, input *safe.Mat, alloc chain.Allocator) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var code gocv.ColorConversionCode
	switch input.Channels() {
	case 1:
		return g.copyGray(input, alloc)
	case 3:
		code = gocv.ColorBGRToGray
	case 4:
		code = gocv.ColorBGRAToGray
	default:
		return nil, fmt.Errorf("unsupported channel count for grayscale conversion: %d", input.Channels())
	}

	if err := safe.ValidateColorConversion(input, code); err != nil {
		return nil, err
	}

	dst, err := alloc.GetMat(input.Rows(), input.Cols(), gocv.MatTypeCV8UC1)
	if err != nil {
		return nil, fmt.Errorf("destination Mat creation failed: %w", err)
	}

	dstMat := dst.GetMat()
	gocv.CvtColor(input.GetMat(), &dstMat, code)

	return dst, nil
}

func (g *GrayscaleConverter) copyGray(input *safe.Mat, alloc chain.Allocator) (*safe.Mat, error) {
	if input.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("unsupported single-channel type: %v", input.Type())
	}

	dst, err := alloc.GetMat(input.Rows(), input.Cols(), gocv.MatTypeCV8UC1)
	if err != nil {
		return nil, fmt.Errorf("destination Mat creation failed: %w", err)
	}

	dstMat := dst.GetMat()
	srcMat := input.GetMat()
	srcMat.CopyTo(&dstMat)
	return dst, nil
}
