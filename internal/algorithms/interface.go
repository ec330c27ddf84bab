package algorithms

import (
	"framecull/internal/models"
	"framecull/internal/opencv/safe"
)

// ChangeDetector decides whether curr carries enough new content relative
// to prev. Both frames are preprocessed grayscale images and are never
// modified or retained by the detector.
type ChangeDetector interface {
	Decide(prev, curr *safe.Mat) (models.FrameDecision, error)
	Kind() models.AlgorithmKind
	BlurSize() int
	Close()
}
