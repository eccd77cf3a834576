package cache

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/regbrowser/pkg/metrics"
)

var (
	cacheRequestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "regbrowser",
		Subsystem: "cache",
		Name:      "request_duration_seconds",
		Help:      "Duration of cache requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{metrics.LabelMethod, metrics.LabelSuccess})
)

type instrumentedStorage struct {
	next Storage
}

func InstrumentStorage(s Storage) Storage {
	return &instrumentedStorage{
		next: s,
	}
}

func observe(method string, begin time.Time, err error) {
	cacheRequestDuration.With(
		metrics.LabelMethod, method,
		metrics.LabelSuccess, fmt.Sprint(err == nil || err == ErrNotCached),
	).Observe(time.Since(begin).Seconds())
}

func (i *instrumentedStorage) Get(key string) (_ []byte, err error) {
	defer func(begin time.Time) { observe("Get", begin, err) }(time.Now())
	return i.next.Get(key)
}

func (i *instrumentedStorage) Set(key string, value []byte) (err error) {
	defer func(begin time.Time) { observe("Set", begin, err) }(time.Now())
	return i.next.Set(key, value)
}

func (i *instrumentedStorage) Delete(key string) (err error) {
	defer func(begin time.Time) { observe("Delete", begin, err) }(time.Now())
	return i.next.Delete(key)
}

func (i *instrumentedStorage) Keys(prefix string) (_ []string, err error) {
	defer func(begin time.Time) { observe("Keys", begin, err) }(time.Now())
	return i.next.Keys(prefix)
}
