package filters

import (
	"context"
	"fmt"
	"image"

	"framecull/internal/opencv/safe"
	"framecull/internal/processing/chain"

	"gocv.io/x/gocv"
)

// GaussianFilter blurs with a square kernel; sigma is derived from the
// kernel size. A kernel size of 1 disables the step.
type GaussianFilter struct {
	kernelSize int
}

func NewGaussianFilter(kernelSize int) *GaussianFilter {
	return &GaussianFilter{kernelSize: kernelSize}
}

func (g *GaussianFilter) Name() string {
	return "gaussian_filter"
}

func (g *GaussianFilter) ShouldExecute() bool {
	return g.kernelSize > 1
}

func (g *GaussianFilter) Apply(ctx context.Context, input *safe.Mat, alloc chain.Allocator) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if g.kernelSize%2 == 0 {
		return nil, fmt.Errorf("gaussian kernel size must be odd, got %d", g.kernelSize)
	}

	dst, err := alloc.GetMat(input.Rows(), input.Cols(), input.Type())
	if err != nil {
		return nil, fmt.Errorf("failed to create destination Mat: %w", err)
	}

	dstMat := dst.GetMat()
	gocv.GaussianBlur(input.GetMat(), &dstMat, image.Pt(g.kernelSize, g.kernelSize), 0, 0, gocv.BorderDefault)

	return dst, nil
}
