package pipeline

import (
	"context"
	"errors"
)

// ErrOutputDir is returned when a batch output directory cannot be created.
var ErrOutputDir = errors.New("cannot create output directory")

type TimingTracker interface {
	StartTiming(operation string) context.Context
	EndTiming(ctx context.Context)
}

type nopTiming struct{}

func (nopTiming) StartTiming(string) context.Context { return context.Background() }
func (nopTiming) EndTiming(context.Context)          {}
