package chain

import (
	"context"
	"fmt"

	"framecull/internal/opencv/safe"

	"gocv.io/x/gocv"
)

// ProcessingStep transforms a frame into a new Mat obtained from alloc.
// Steps never close their input.
type ProcessingStep interface {
	Apply(ctx context.Context, input *safe.Mat, alloc Allocator) (*safe.Mat, error)
	Name() string
	ShouldExecute() bool
}

// Allocator hands out destination buffers for steps. memory.Manager
// satisfies it with a pool.
type Allocator interface {
	GetMat(rows, cols int, matType gocv.MatType) (*safe.Mat, error)
	ReleaseMat(mat *safe.Mat)
}

type heapAllocator struct{}

func (heapAllocator) GetMat(rows, cols int, matType gocv.MatType) (*safe.Mat, error) {
	return safe.NewMat(rows, cols, matType)
}

func (heapAllocator) ReleaseMat(mat *safe.Mat) {
	if mat != nil {
		mat.Close()
	}
}

// HeapAllocator allocates every buffer fresh and closes it on release.
func HeapAllocator() Allocator {
	return heapAllocator{}
}

type ProcessingChain struct {
	steps []ProcessingStep
	alloc Allocator
}

func NewProcessingChain(steps []ProcessingStep, alloc Allocator) *ProcessingChain {
	if alloc == nil {
		alloc = HeapAllocator()
	}
	return &ProcessingChain{
		steps: steps,
		alloc: alloc,
	}
}

// Execute runs every enabled step. The result is always a new Mat owned by
// the caller, to be handed back through Release; input is left untouched.
func (pc *ProcessingChain) Execute(ctx context.Context, input *safe.Mat) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(input, "ProcessingChain"); err != nil {
		return nil, err
	}

	current := input

	for _, step := range pc.steps {
		select {
		case <-ctx.Done():
			pc.releaseIntermediate(current, input)
			return nil, ctx.Err()
		default:
		}

		if !step.ShouldExecute() {
			continue
		}

		result, err := step.Apply(ctx, current, pc.alloc)
		pc.releaseIntermediate(current, input)
		if err != nil {
			return nil, fmt.Errorf("step %s failed: %w", step.Name(), err)
		}

		current = result
	}

	if current == input {
		return pc.copyOf(input)
	}
	return current, nil
}

// Release returns a Mat produced by Execute.
func (pc *ProcessingChain) Release(mat *safe.Mat) {
	pc.alloc.ReleaseMat(mat)
}

func (pc *ProcessingChain) releaseIntermediate(current, input *safe.Mat) {
	if current != input {
		pc.alloc.ReleaseMat(current)
	}
}

func (pc *ProcessingChain) copyOf(input *safe.Mat) (*safe.Mat, error) {
	dst, err := pc.alloc.GetMat(input.Rows(), input.Cols(), input.Type())
	if err != nil {
		return nil, err
	}
	dstMat := dst.GetMat()
	srcMat := input.GetMat()
	srcMat.CopyTo(&dstMat)
	return dst, nil
}

// GetStepNames lists the steps that Execute will run, in order.
func (pc *ProcessingChain) GetStepNames() []string {
	names := make([]string, 0, len(pc.steps))
	for _, step := range pc.steps {
		if step.ShouldExecute() {
			names = append(names, step.Name())
		}
	}
	return names
}
