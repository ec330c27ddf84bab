package timing

import (
	"context"
	"sort"
	"sync"
	"time"
)

type timingKey struct{}

type TimingInfo struct {
	Operation string
	StartTime time.Time
}

// Stat summarizes the recorded durations of one operation.
type Stat struct {
	Operation string
	Count     int
	Total     time.Duration
	Average   time.Duration
}

// MaxSamples bounds the recent durations kept per operation. Count and
// Total keep accumulating past it.
const MaxSamples = 256

type aggregate struct {
	count  int
	total  time.Duration
	recent []time.Duration
	next   int
}

func (a *aggregate) add(d time.Duration) {
	a.count++
	a.total += d
	if len(a.recent) < MaxSamples {
		a.recent = append(a.recent, d)
		return
	}
	a.recent[a.next] = d
	a.next = (a.next + 1) % MaxSamples
}

func (a *aggregate) stat(operation string) Stat {
	s := Stat{Operation: operation, Count: a.count, Total: a.total}
	if a.count > 0 {
		s.Average = a.total / time.Duration(a.count)
	}
	return s
}

type Tracker struct {
	timings map[string]*aggregate
	mu      sync.RWMutex
	enabled bool
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string]*aggregate),
		enabled: true,
	}
}

func (tt *Tracker) StartTiming(operation string) context.Context {
	tt.mu.RLock()
	enabled := tt.enabled
	tt.mu.RUnlock()

	if !enabled {
		return context.Background()
	}

	return context.WithValue(context.Background(), timingKey{}, TimingInfo{
		Operation: operation,
		StartTime: time.Now(),
	})
}

func (tt *Tracker) EndTiming(ctx context.Context) {
	timingInfo, ok := ctx.Value(timingKey{}).(TimingInfo)
	if !ok {
		return
	}

	tt.Record(timingInfo.Operation, time.Since(timingInfo.StartTime))
}

// Record adds a measured duration directly.
func (tt *Tracker) Record(operation string, d time.Duration) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if !tt.enabled {
		return
	}
	agg, ok := tt.timings[operation]
	if !ok {
		agg = &aggregate{}
		tt.timings[operation] = agg
	}
	agg.add(d)
}

// GetTimings returns up to MaxSamples of the most recent durations, oldest
// first.
func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	agg, ok := tt.timings[operation]
	if !ok {
		return nil
	}

	result := make([]time.Duration, 0, len(agg.recent))
	result = append(result, agg.recent[agg.next:]...)
	result = append(result, agg.recent[:agg.next]...)
	return result
}

// Stat returns the running totals of one operation.
func (tt *Tracker) Stat(operation string) (Stat, bool) {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	agg, ok := tt.timings[operation]
	if !ok {
		return Stat{Operation: operation}, false
	}
	return agg.stat(operation), true
}

// Summary returns one Stat per operation, sorted by name.
func (tt *Tracker) Summary() []Stat {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	stats := make([]Stat, 0, len(tt.timings))
	for operation, agg := range tt.timings {
		stats = append(stats, agg.stat(operation))
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Operation < stats[j].Operation })
	return stats
}

func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}
