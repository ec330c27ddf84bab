package metrics

import (
	"time"

	"framecull/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives job and frame level measurements from the pipeline.
type Recorder interface {
	JobFinished(status models.Status, elapsed time.Duration)
	FrameAnalyzed(kind models.AlgorithmKind, kept bool, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) JobFinished(models.Status, time.Duration)                {}
func (nopRecorder) FrameAnalyzed(models.AlgorithmKind, bool, time.Duration) {}

func Nop() Recorder {
	return nopRecorder{}
}

type Prometheus struct {
	JobsTotal           *prometheus.CounterVec
	JobDuration         prometheus.Histogram
	FramesAnalyzedTotal *prometheus.CounterVec
	FramesKeptTotal     *prometheus.CounterVec
	DetectorDuration    *prometheus.HistogramVec
}

// NewPrometheus registers the collectors with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)

	return &Prometheus{
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framecull_jobs_total",
			Help: "Total number of retention jobs, by terminal status",
		}, []string{"status"}),

		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "framecull_job_duration_seconds",
			Help:    "Wall-clock duration of retention jobs",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		FramesAnalyzedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framecull_frames_analyzed_total",
			Help: "Total number of frames analyzed, by algorithm",
		}, []string{"algorithm"}),

		FramesKeptTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "framecull_frames_kept_total",
			Help: "Total number of frames retained, by algorithm",
		}, []string{"algorithm"}),

		DetectorDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "framecull_detector_seconds",
			Help:    "Per-frame change detector latency",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"algorithm"}),
	}
}

func (p *Prometheus) JobFinished(status models.Status, elapsed time.Duration) {
	p.JobsTotal.WithLabelValues(status.String()).Inc()
	p.JobDuration.Observe(elapsed.Seconds())
}

func (p *Prometheus) FrameAnalyzed(kind models.AlgorithmKind, kept bool, elapsed time.Duration) {
	alg := kind.String()
	p.FramesAnalyzedTotal.WithLabelValues(alg).Inc()
	if kept {
		p.FramesKeptTotal.WithLabelValues(alg).Inc()
	}
	p.DetectorDuration.WithLabelValues(alg).Observe(elapsed.Seconds())
}
