package models

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

// AlgorithmKind selects the change detector used for a job
type AlgorithmKind int

const (
	FrameDifference AlgorithmKind = iota
	StructuralSimilarity
	OpticalFlow
)

var ErrUnknownAlgorithm = errors.New("unknown algorithm")

func (k AlgorithmKind) String() string {
	switch k {
	case FrameDifference:
		return "framediff"
	case StructuralSimilarity:
		return "ssim"
	case OpticalFlow:
		return "flow"
	default:
		return fmt.Sprintf("AlgorithmKind(%d)", int(k))
	}
}

// Suffix is the short tag appended to auto-generated output names.
func (k AlgorithmKind) Suffix() string {
	switch k {
	case FrameDifference:
		return "fd"
	case StructuralSimilarity:
		return "ssim"
	case OpticalFlow:
		return "flow"
	default:
		return "proc"
	}
}

func (k AlgorithmKind) Valid() bool {
	return k >= FrameDifference && k <= OpticalFlow
}

// ParseAlgorithmKind accepts the canonical names and a few long-form aliases.
func ParseAlgorithmKind(s string) (AlgorithmKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "framediff", "frame_difference", "frame-difference", "fd":
		return FrameDifference, nil
	case "ssim", "structural_similarity", "structural-similarity":
		return StructuralSimilarity, nil
	case "flow", "optical_flow", "optical-flow", "opticalflow":
		return OpticalFlow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

func (k AlgorithmKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(k))
	}
	return []byte(k.String()), nil
}

func (k *AlgorithmKind) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithmKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// FrameDiffParams configures the frame-difference detector
type FrameDiffParams struct {
	Threshold int `yaml:"threshold" env:"THRESHOLD"`
	MinArea   int `yaml:"min_area" env:"MIN_AREA"`
	BlurSize  int `yaml:"blur_size" env:"BLUR_SIZE"`
}

// SSIMParams configures the structural-similarity detector
type SSIMParams struct {
	Threshold float64 `yaml:"threshold" env:"THRESHOLD"`
	BlurSize  int     `yaml:"blur_size" env:"BLUR_SIZE"`
}

// FlowParams configures the dense optical-flow detector. The Farneback
// fields are passed straight to gocv.CalcOpticalFlowFarneback.
type FlowParams struct {
	Threshold  float64 `yaml:"threshold" env:"THRESHOLD"`
	BlurSize   int     `yaml:"blur_size" env:"BLUR_SIZE"`
	PyrScale   float64 `yaml:"pyr_scale"`
	Levels     int     `yaml:"levels"`
	WinSize    int     `yaml:"win_size"`
	Iterations int     `yaml:"iterations"`
	PolyN      int     `yaml:"poly_n"`
	PolySigma  float64 `yaml:"poly_sigma"`
}

// ProcessingParameters holds one parameter set per algorithm. A detector
// only ever reads its own sub-structure.
type ProcessingParameters struct {
	FrameDiff FrameDiffParams `yaml:"frame_diff" envPrefix:"DIFF_"`
	SSIM      SSIMParams      `yaml:"ssim" envPrefix:"SSIM_"`
	Flow      FlowParams      `yaml:"flow" envPrefix:"FLOW_"`
}

// DefaultParameters mirrors the shipped settings file.
func DefaultParameters() ProcessingParameters {
	return ProcessingParameters{
		FrameDiff: FrameDiffParams{
			Threshold: 15,
			MinArea:   500,
			BlurSize:  5,
		},
		SSIM: SSIMParams{
			Threshold: 0.98,
			BlurSize:  5,
		},
		Flow: FlowParams{
			Threshold:  1.0,
			BlurSize:   7,
			PyrScale:   0.5,
			Levels:     3,
			WinSize:    15,
			Iterations: 3,
			PolyN:      5,
			PolySigma:  1.2,
		},
	}
}

// NormalizeBlurSize returns the nearest odd kernel extent >= 1.
// Even values are bumped up by one.
func NormalizeBlurSize(n int) int {
	if n < 1 {
		return 1
	}
	if n%2 == 0 {
		return n + 1
	}
	return n
}

// BlurSizeFor returns the normalized blur size of the given algorithm's sub-structure.
func (p ProcessingParameters) BlurSizeFor(kind AlgorithmKind) int {
	switch kind {
	case StructuralSimilarity:
		return NormalizeBlurSize(p.SSIM.BlurSize)
	case OpticalFlow:
		return NormalizeBlurSize(p.Flow.BlurSize)
	default:
		return NormalizeBlurSize(p.FrameDiff.BlurSize)
	}
}

// Normalized returns a copy with every blur size forced odd and >= 1.
func (p ProcessingParameters) Normalized() ProcessingParameters {
	p.FrameDiff.BlurSize = NormalizeBlurSize(p.FrameDiff.BlurSize)
	p.SSIM.BlurSize = NormalizeBlurSize(p.SSIM.BlurSize)
	p.Flow.BlurSize = NormalizeBlurSize(p.Flow.BlurSize)
	return p
}

// Validate checks the sub-structure read by kind.
func (p ProcessingParameters) Validate(kind AlgorithmKind) error {
	switch kind {
	case FrameDifference:
		if p.FrameDiff.Threshold < 0 || p.FrameDiff.Threshold > 255 {
			return NewValidationError("frame_diff.threshold", p.FrameDiff.Threshold, "must be within [0, 255]")
		}
		if p.FrameDiff.MinArea < 0 {
			return NewValidationError("frame_diff.min_area", p.FrameDiff.MinArea, "must be >= 0")
		}
	case StructuralSimilarity:
		if math.IsNaN(p.SSIM.Threshold) || p.SSIM.Threshold <= 0 || p.SSIM.Threshold >= 1 {
			return NewValidationError("ssim.threshold", p.SSIM.Threshold, "must be within (0, 1)")
		}
	case OpticalFlow:
		f := p.Flow
		if math.IsNaN(f.Threshold) || f.Threshold <= 0 {
			return NewValidationError("flow.threshold", f.Threshold, "must be > 0")
		}
		if f.PyrScale <= 0 || f.PyrScale >= 1 {
			return NewValidationError("flow.pyr_scale", f.PyrScale, "must be within (0, 1)")
		}
		if f.Levels < 1 {
			return NewValidationError("flow.levels", f.Levels, "must be >= 1")
		}
		if f.WinSize < 1 {
			return NewValidationError("flow.win_size", f.WinSize, "must be >= 1")
		}
		if f.Iterations < 1 {
			return NewValidationError("flow.iterations", f.Iterations, "must be >= 1")
		}
		if f.PolyN != 5 && f.PolyN != 7 {
			return NewValidationError("flow.poly_n", f.PolyN, "must be 5 or 7")
		}
		if f.PolySigma <= 0 {
			return NewValidationError("flow.poly_sigma", f.PolySigma, "must be > 0")
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownAlgorithm, int(kind))
	}
	return nil
}

// Region is a connected foreground area that changed between two frames
type Region struct {
	Area   float64
	Bounds image.Rectangle
}

// FrameDecision is the detector verdict for one frame pair.
// Score carries the similarity index or the mean flow magnitude;
// Regions is filled by the frame-difference detector only.
type FrameDecision struct {
	Keep    bool
	Score   float64
	Regions []Region
	Warning string
}

// ValidationError represents a parameter validation error
type ValidationError struct {
	Parameter string
	Value     interface{}
	Message   string
}

// NewValidationError creates a new validation error
func NewValidationError(parameter string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Parameter: parameter,
		Value:     value,
		Message:   message,
	}
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for parameter '%s' with value '%v': %s",
		ve.Parameter, ve.Value, ve.Message)
}
