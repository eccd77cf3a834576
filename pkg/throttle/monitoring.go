package throttle

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	queueWait = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "regbrowser",
		Subsystem: "throttle",
		Name:      "wait_seconds",
		Help:      "Time registry calls spend queued before running, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{})
	queueLength = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Namespace: "regbrowser",
		Subsystem: "throttle",
		Name:      "queue_length",
		Help:      "Number of registry calls waiting to run.",
	}, []string{})
)
