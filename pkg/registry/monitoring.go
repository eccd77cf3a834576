package registry

// Monitoring middlewares for registry interfaces

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/regbrowser/pkg/metrics"
)

const (
	RequestKindPing         = "ping"
	RequestKindRepositories = "repositories"
	RequestKindTags         = "tags"
	RequestKindManifest     = "manifest"
	RequestKindBlob         = "blob"
	RequestKindImageInfo    = "imageinfo"
	RequestKindDelete       = "delete"
)

var (
	remoteDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "regbrowser",
		Subsystem: "client",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of remote registry requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{metrics.LabelKind, metrics.LabelSuccess})
)

type instrumentedClient struct {
	next Client
}

func NewInstrumentedClient(next Client) Client {
	return &instrumentedClient{
		next: next,
	}
}

func observe(kind string, start time.Time, err error) {
	remoteDuration.With(
		metrics.LabelKind, kind,
		metrics.LabelSuccess, strconv.FormatBool(err == nil),
	).Observe(time.Since(start).Seconds())
}

func (m *instrumentedClient) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { observe(RequestKindPing, start, err) }(time.Now())
	return m.next.Ping(ctx)
}

func (m *instrumentedClient) AllRepositories(ctx context.Context, pageSize int) (res []string, err error) {
	defer func(start time.Time) { observe(RequestKindRepositories, start, err) }(time.Now())
	return m.next.AllRepositories(ctx, pageSize)
}

func (m *instrumentedClient) Tags(ctx context.Context, repository string) (res []string, err error) {
	defer func(start time.Time) { observe(RequestKindTags, start, err) }(time.Now())
	return m.next.Tags(ctx, repository)
}

func (m *instrumentedClient) Manifest(ctx context.Context, repository, reference string) (res *Manifest, err error) {
	defer func(start time.Time) { observe(RequestKindManifest, start, err) }(time.Now())
	return m.next.Manifest(ctx, repository, reference)
}

func (m *instrumentedClient) BlobHead(ctx context.Context, repository, digest string) (res BlobInfo, err error) {
	defer func(start time.Time) { observe(RequestKindBlob, start, err) }(time.Now())
	return m.next.BlobHead(ctx, repository, digest)
}

func (m *instrumentedClient) ImageInfo(ctx context.Context, repository, tag string) (res *ImageInfo, err error) {
	defer func(start time.Time) { observe(RequestKindImageInfo, start, err) }(time.Now())
	return m.next.ImageInfo(ctx, repository, tag)
}

func (m *instrumentedClient) DeleteManifest(ctx context.Context, repository, digest string) (err error) {
	defer func(start time.Time) { observe(RequestKindDelete, start, err) }(time.Now())
	return m.next.DeleteManifest(ctx, repository, digest)
}
