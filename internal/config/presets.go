package config

import (
	"fmt"
	"sort"

	"framecull/internal/models"
)

// Preset is a named parameter combination for one algorithm. Threshold is
// read in the unit of that algorithm: an 8-bit difference, a similarity
// index or a mean flow magnitude.
type Preset struct {
	Name        string
	Description string
	Algorithm   models.AlgorithmKind
	Threshold   float64
	MinArea     int
	BlurSize    int
}

var presets = map[string]Preset{
	"default": {
		Name:        "default",
		Description: "frame difference with the shipped settings",
		Algorithm:   models.FrameDifference,
		Threshold:   15,
		MinArea:     500,
		BlurSize:    5,
	},
	"high-action": {
		Name:        "high-action",
		Description: "frame difference tuned for small, fast changes",
		Algorithm:   models.FrameDifference,
		Threshold:   10,
		MinArea:     200,
		BlurSize:    3,
	},
	"slow-scene": {
		Name:        "slow-scene",
		Description: "ssim letting very subtle changes through",
		Algorithm:   models.StructuralSimilarity,
		Threshold:   0.985,
		BlurSize:    7,
	},
	"pan-zoom": {
		Name:        "pan-zoom",
		Description: "optical flow keeping only pronounced camera motion",
		Algorithm:   models.OpticalFlow,
		Threshold:   1.5,
		BlurSize:    9,
	},
	"visual-similarity": {
		Name:        "visual-similarity",
		Description: "lenient ssim discarding more similar frames",
		Algorithm:   models.StructuralSimilarity,
		Threshold:   0.97,
		BlurSize:    5,
	},
}

func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown preset %q", name)
	}
	return p, nil
}

// Presets returns every preset sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Apply overwrites the preset algorithm's sub-structure of params. The
// optical-flow tunables and the other algorithms' settings are kept.
func (p Preset) Apply(params models.ProcessingParameters) models.ProcessingParameters {
	switch p.Algorithm {
	case models.FrameDifference:
		params.FrameDiff = models.FrameDiffParams{
			Threshold: int(p.Threshold),
			MinArea:   p.MinArea,
			BlurSize:  p.BlurSize,
		}
	case models.StructuralSimilarity:
		params.SSIM = models.SSIMParams{
			Threshold: p.Threshold,
			BlurSize:  p.BlurSize,
		}
	case models.OpticalFlow:
		params.Flow.Threshold = p.Threshold
		params.Flow.BlurSize = p.BlurSize
	}
	return params.Normalized()
}

// ApplyPreset switches c to the preset algorithm and its parameters.
func (c *Config) ApplyPreset(name string) error {
	p, err := LookupPreset(name)
	if err != nil {
		return err
	}
	c.Algorithm = p.Algorithm
	c.Params = p.Apply(c.Params)
	return nil
}
