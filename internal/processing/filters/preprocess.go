package filters

import (
	"context"

	"framecull/internal/models"
	"framecull/internal/opencv/safe"
	"framecull/internal/processing/chain"
)

// Preprocessor turns a decoded frame into the blurred grayscale image the
// detectors compare.
type Preprocessor struct {
	chain    *chain.ProcessingChain
	blurSize int
}

// NewPreprocessor normalizes blurSize to an odd value >= 1.
func NewPreprocessor(blurSize int, alloc chain.Allocator) *Preprocessor {
	blurSize = models.NormalizeBlurSize(blurSize)
	steps := []chain.ProcessingStep{
		NewGrayscaleConverter(),
		NewGaussianFilter(blurSize),
	}
	return &Preprocessor{
		chain:    chain.NewProcessingChain(steps, alloc),
		blurSize: blurSize,
	}
}

func (p *Preprocessor) BlurSize() int {
	return p.blurSize
}

// Steps names the enabled preprocessing steps.
func (p *Preprocessor) Steps() []string {
	return p.chain.GetStepNames()
}

func (p *Preprocessor) Process(ctx context.Context, frame *safe.Mat) (*safe.Mat, error) {
	return p.chain.Execute(ctx, frame)
}

// Release hands a processed frame back to the allocator.
func (p *Preprocessor) Release(mat *safe.Mat) {
	p.chain.Release(mat)
}
