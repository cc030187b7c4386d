package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
)

const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

var (
	registerOnce       sync.Once
	runsTotal          *prometheus.CounterVec
	comparisonsTotal   prometheus.Counter
	runDurationSeconds prometheus.Histogram
	matchesGauge       *prometheus.GaugeVec
	partialResults     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors for analysis runs.
func RegisterMetrics() {
	registerOnce.Do(func() {
		runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integrity_runs_total",
			Help: "Total number of integrity analysis runs by outcome.",
		}, []string{"status"})

		comparisonsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "integrity_comparisons_total",
			Help: "Total number of pairwise answer comparisons performed.",
		})

		runDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "integrity_run_duration_seconds",
			Help:    "Wall time of integrity analysis runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		})

		matchesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "integrity_matches",
			Help: "Findings in the latest report by kind.",
		}, []string{"kind"})

		partialResults = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "integrity_partial_results",
			Help: "1 when the latest report stopped at the comparison budget.",
		})

		prometheus.MustRegister(runsTotal, comparisonsTotal, runDurationSeconds, matchesGauge, partialResults)
	})
}

func Runs() *prometheus.CounterVec {
	RegisterMetrics()
	return runsTotal
}

func Comparisons() prometheus.Counter {
	RegisterMetrics()
	return comparisonsTotal
}

func RunDuration() prometheus.Histogram {
	RegisterMetrics()
	return runDurationSeconds
}

func Matches() *prometheus.GaugeVec {
	RegisterMetrics()
	return matchesGauge
}

func PartialResults() prometheus.Gauge {
	RegisterMetrics()
	return partialResults
}

// RunRecorder feeds run outcomes into the collectors above.
type RunRecorder struct{}

func NewRunRecorder() *RunRecorder {
	RegisterMetrics()
	return &RunRecorder{}
}

func (RunRecorder) RecordSuccess(duration time.Duration, stats models.ReportStats) {
	Runs().WithLabelValues(RunStatusSuccess).Inc()
	RunDuration().Observe(duration.Seconds())
	Comparisons().Add(float64(stats.TotalComparisons))
	Matches().WithLabelValues("similarity").Set(float64(stats.SuspiciousSimilarities))
	Matches().WithLabelValues("ai").Set(float64(stats.SuspiciousAI))
	Matches().WithLabelValues("high_risk_pairs").Set(float64(stats.HighRiskPairs))

	partial := 0.0
	if stats.IsPartialResults {
		partial = 1
	}
	PartialResults().Set(partial)
}

func (RunRecorder) RecordFailure(duration time.Duration) {
	Runs().WithLabelValues(RunStatusFailed).Inc()
	RunDuration().Observe(duration.Seconds())
}

// Push sends every registered collector to a Pushgateway. Batch runs exit
// before a scrape could reach them.
func Push(ctx context.Context, url, job string) error {
	RegisterMetrics()

	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
