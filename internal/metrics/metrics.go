// Package metrics exposes lifecycle counters and durations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deploysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ironsmith",
		Name:      "deploys_total",
		Help:      "Instance deployments by outcome.",
	}, []string{"outcome"})

	teardownsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ironsmith",
		Name:      "teardowns_total",
		Help:      "Instance teardowns by outcome.",
	}, []string{"outcome"})

	deployDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ironsmith",
		Name:      "deploy_duration_seconds",
		Help:      "Wall-clock duration of successful deployments.",
		Buckets:   prometheus.ExponentialBuckets(30, 2, 8),
	})
)

// ObserveDeploy records one deployment outcome.
func ObserveDeploy(err error, elapsed time.Duration) {
	if err != nil {
		deploysTotal.WithLabelValues("failure").Inc()
		return
	}
	deploysTotal.WithLabelValues("success").Inc()
	deployDuration.Observe(elapsed.Seconds())
}

// ObserveTeardown records one teardown outcome.
func ObserveTeardown(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	teardownsTotal.WithLabelValues(outcome).Inc()
}
