// Package metrics provides Prometheus metrics for rankwatch.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/amishk599/rankwatch/internal/pipeline"
)

const namespace = "rankwatch"

// Collectors holds every rankwatch metric. It implements retry.Observer,
// tracker.Observer and pipeline.Observer.
type Collectors struct {
	// HTTPAttempts counts upstream request attempts by host, status and
	// whether a retry followed. Status is "0" when no response arrived.
	HTTPAttempts *prometheus.CounterVec

	// GroupSearches counts position-tracker group searches by outcome.
	GroupSearches *prometheus.CounterVec

	// TrackedPostings counts postings annotated by group searches, by outcome.
	TrackedPostings *prometheus.CounterVec

	// Runs counts finished analysis runs by outcome.
	Runs *prometheus.CounterVec

	// RunDuration measures analysis run duration.
	RunDuration prometheus.Histogram

	// RunPostings observes how many postings each run returned.
	RunPostings prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		HTTPAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_attempts_total",
				Help:      "Total number of upstream HTTP request attempts",
			},
			[]string{"host", "status", "retrying"},
		),
		GroupSearches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "group_searches_total",
				Help:      "Total number of search-group queries",
			},
			[]string{"outcome"},
		),
		TrackedPostings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tracked_postings_total",
				Help:      "Total number of postings annotated by group searches",
			},
			[]string{"outcome"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished analysis runs",
			},
			[]string{"outcome"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of analysis runs in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		RunPostings: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_postings",
				Help:      "Distribution of postings per analysis run",
				Buckets:   []float64{0, 10, 50, 100, 250, 500, 1000, 2000},
			},
		),
	}
}

// ObserveAttempt records one upstream request attempt.
func (c *Collectors) ObserveAttempt(host string, statusCode int, retrying bool) {
	c.HTTPAttempts.WithLabelValues(host, strconv.Itoa(statusCode), strconv.FormatBool(retrying)).Inc()
}

// ObserveGroup records one group search.
func (c *Collectors) ObserveGroup(succeeded bool, members int) {
	outcome := "ok"
	if !succeeded {
		outcome = "failed"
	}
	c.GroupSearches.WithLabelValues(outcome).Inc()
	c.TrackedPostings.WithLabelValues(outcome).Add(float64(members))
}

// ObserveRun records one finished analysis run.
func (c *Collectors) ObserveRun(outcome pipeline.Outcome, postings int, elapsed time.Duration) {
	c.Runs.WithLabelValues(string(outcome)).Inc()
	c.RunDuration.Observe(elapsed.Seconds())
	if outcome == pipeline.OutcomeCompleted {
		c.RunPostings.Observe(float64(postings))
	}
}
