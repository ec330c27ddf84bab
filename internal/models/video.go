package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DefaultFPS replaces a missing or non-positive frame rate.
const DefaultFPS = 30.0

var ErrInvalidMetadata = errors.New("invalid video metadata")

// VideoMetadata is read once when a source is opened
type VideoMetadata struct {
	FrameCount int
	FPS        float64
	Width      int
	Height     int
}

// WithFallbackFPS reports whether the frame rate had to be substituted.
func (m VideoMetadata) WithFallbackFPS() (VideoMetadata, bool) {
	if math.IsNaN(m.FPS) || math.IsInf(m.FPS, 0) || m.FPS <= 0 {
		m.FPS = DefaultFPS
		return m, true
	}
	return m, false
}

func (m VideoMetadata) Validate() error {
	if m.FrameCount <= 0 || m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: frames=%d, width=%d, height=%d",
			ErrInvalidMetadata, m.FrameCount, m.Width, m.Height)
	}
	return nil
}

// SpeedRestorePercent is the ratio of output to source duration in percent.
// A video with at most one frame has no duration span and yields 0.
func SpeedRestorePercent(totalFrames, keptFrames int, fps float64) float64 {
	if fps <= 0 || totalFrames <= 1 {
		return 0
	}
	originalDuration := float64(totalFrames) / fps
	newDuration := float64(keptFrames) / fps
	if originalDuration == 0 {
		return 0
	}
	return newDuration / originalDuration * 100
}

type Status int

const (
	StatusSuccess Status = iota
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is emitted after every analyzed frame
type Progress struct {
	Percent   float64
	Processed int
	Total     int
}

func NewProgress(processed, total int) Progress {
	p := Progress{Processed: processed, Total: total}
	if total > 0 {
		p.Percent = float64(processed) / float64(total) * 100
	}
	return p
}

// ProcessingResult is the terminal outcome of one retention job
type ProcessingResult struct {
	Input               string
	Output              string
	Status              Status
	KeptFrames          int
	ProcessedFrames     int
	TotalFrames         int
	SpeedRestorePercent float64
	Message             string
	Err                 error
	Duration            time.Duration
}

// FileOutcome pairs a batch entry with its result
type FileOutcome struct {
	Name   string
	Result ProcessingResult
}

// BatchSummary aggregates the outcomes of one batch invocation
type BatchSummary struct {
	ID        uuid.UUID
	Results   []FileOutcome
	Total     int
	Succeeded int
	Failed    int
	Cancelled int
	Err       error
}

// Record appends an outcome and updates the tallies.
func (s *BatchSummary) Record(name string, result ProcessingResult) {
	s.Results = append(s.Results, FileOutcome{Name: name, Result: result})
	switch result.Status {
	case StatusSuccess:
		s.Succeeded++
	case StatusCancelled:
		s.Cancelled++
	default:
		s.Failed++
	}
}
