package pipeline

import "framecull/internal/models"

// Observer receives per-frame progress of a single job. Calls happen on
// the goroutine running the job.
type Observer interface {
	Progress(p models.Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(p models.Progress)

func (f ObserverFunc) Progress(p models.Progress) {
	f(p)
}

type nopObserver struct{}

func (nopObserver) Progress(models.Progress) {}

// BatchObserver receives the events of a batch run in order.
type BatchObserver interface {
	FileStarted(name string)
	FileProgress(name string, p models.Progress)
	FileFinished(name string, result models.ProcessingResult)
	FileError(name string, result models.ProcessingResult)
	FileCancelled(name string, result models.ProcessingResult)
	OverallProgress(percent float64)
	BatchError(err error)
	BatchFinished(summary models.BatchSummary)
}

// BaseBatchObserver ignores every event. Embed it to implement only the
// events of interest.
type BaseBatchObserver struct{}

func (BaseBatchObserver) FileStarted(string)                            {}
func (BaseBatchObserver) FileProgress(string, models.Progress)          {}
func (BaseBatchObserver) FileFinished(string, models.ProcessingResult)  {}
func (BaseBatchObserver) FileError(string, models.ProcessingResult)     {}
func (BaseBatchObserver) FileCancelled(string, models.ProcessingResult) {}
func (BaseBatchObserver) OverallProgress(float64)                       {}
func (BaseBatchObserver) BatchError(error)                              {}
func (BaseBatchObserver) BatchFinished(models.BatchSummary)             {}
