package registry

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/fluxcd/regbrowser/pkg/registry/middleware"
	"github.com/fluxcd/regbrowser/pkg/throttle"
)

// RemoteClientFactory builds instrumented Remote clients that share
// one throttler, so calls from every client are queued together.
type RemoteClientFactory struct {
	Logger    log.Logger
	Limiters  *middleware.RateLimiters
	Throttler *throttle.Throttler
	Trace     bool
	// Timeout bounds each HTTP round trip; zero means none.
	Timeout time.Duration

	// hosts with which to tolerate insecure connections (i.e., with
	// TLS_INSECURE_SKIP_VERIFY).
	InsecureHosts []string
}

type logging struct {
	logger    log.Logger
	transport http.RoundTripper
}

func (t *logging) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.transport.RoundTrip(req)
	if err == nil {
		t.logger.Log("method", req.Method, "url", req.URL.String(), "status", res.Status)
	} else {
		t.logger.Log("method", req.Method, "url", req.URL.String(), "err", err.Error())
	}
	return res, err
}

func (f *RemoteClientFactory) insecure(host string) bool {
	hosts := []string{host}
	// allow the insecure hosts list to contain hosts with or without the port
	hostWithoutPort, _, err := net.SplitHostPort(host)
	if err == nil {
		// parsing fails if no port is present
		hosts = append(hosts, hostWithoutPort)
	}
	for _, h := range f.InsecureHosts {
		for _, candidate := range hosts {
			if h == candidate {
				return true
			}
		}
	}
	return false
}

func (f *RemoteClientFactory) logger() log.Logger {
	if f.Logger == nil {
		return log.NewNopLogger()
	}
	return f.Logger
}

func (f *RemoteClientFactory) ClientFor(creds Credentials) (Client, error) {
	base, err := creds.BaseURL()
	if err != nil {
		return nil, err
	}

	var tx http.RoundTripper = &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: f.insecure(base.Host),
		},
		MaxIdleConns:          10,
		IdleConnTimeout:       10 * time.Second,
		ResponseHeaderTimeout: f.Timeout,
		Proxy:                 http.ProxyFromEnvironment,
	}
	if f.Limiters != nil {
		tx = f.Limiters.RoundTripper(tx, base.Host)
	}
	if f.Trace {
		tx = &logging{log.With(f.logger(), "component", "http"), tx}
		f.logger().Log("auth", creds.String(), "api", base.String())
	}

	remote, err := NewRemote(creds, tx, f.Throttler, f.logger())
	if err != nil {
		return nil, err
	}
	return NewInstrumentedClient(remote), nil
}

// Succeed exists so that the user of the ClientFactory can bump rate
// limits up once an operation against the registry has gone well.
func (f *RemoteClientFactory) Succeed(creds Credentials) {
	if f.Limiters == nil {
		return
	}
	if base, err := creds.BaseURL(); err == nil {
		f.Limiters.Recover(base.Host)
	}
}
