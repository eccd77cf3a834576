package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fluxcd/regbrowser/pkg/browser"
	"github.com/fluxcd/regbrowser/pkg/credentials"
	"github.com/fluxcd/regbrowser/pkg/registry"
	"github.com/fluxcd/regbrowser/pkg/registry/cache"
	"github.com/fluxcd/regbrowser/pkg/registry/cache/memcached"
	"github.com/fluxcd/regbrowser/pkg/registry/cache/redis"
	"github.com/fluxcd/regbrowser/pkg/registry/cache/sqlite"
	"github.com/fluxcd/regbrowser/pkg/registry/middleware"
	"github.com/fluxcd/regbrowser/pkg/throttle"
)

const envPrefix = "REGBROWSER_"

const (
	backendMemory    = "memory"
	backendSQLite    = "sqlite"
	backendMemcached = "memcached"
	backendRedis     = "redis"
)

type rootOpts struct {
	out io.Writer

	configDir      string
	cacheBackend   string
	memcachedHosts []string
	redisAddr      string
	delay          time.Duration
	rps            float64
	burst          int
	timeout        time.Duration
	insecure       []string
	noSave         bool
	verbose        bool

	logger  log.Logger
	Browser *browser.Browser
	closers []func() error
}

func newRoot(out io.Writer) *rootOpts {
	return &rootOpts{out: out}
}

var rootLongHelp = strings.TrimSpace(`
regbrowser lists and inspects the contents of a Docker registry.

Workflow:
  regbrowser connect https://registry.example.com -u me   # Save credentials and check them.
  regbrowser repos --filter 'team/*'                      # Which repositories are there?
  regbrowser tags team/app --semver                       # Which tags, newest version first?
  regbrowser inspect team/app 1.4.2                       # Sizes, platforms, created time.
  regbrowser delete team/app sha256:...                   # Delete a manifest by digest.

Listings are cached for 24 hours; use --refresh, or "regbrowser cache clear",
to see changes sooner.
`)

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "regbrowser")
	}
	return ".regbrowser"
}

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "regbrowser",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.SetOut(opts.out)
	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.configDir, "config-dir", defaultConfigDir(), "directory for saved credentials and the sqlite cache")
	fs.StringVar(&opts.cacheBackend, "cache-backend", backendSQLite, "where to cache registry listings: memory, sqlite, memcached or redis")
	fs.StringSliceVar(&opts.memcachedHosts, "memcached-hosts", []string{"127.0.0.1:11211"}, "memcached servers, for --cache-backend=memcached")
	fs.StringVar(&opts.redisAddr, "redis-addr", "127.0.0.1:6379", "redis server, for --cache-backend=redis")
	fs.DurationVar(&opts.delay, "delay", throttle.DefaultDelay, "pause between queued registry requests")
	fs.Float64Var(&opts.rps, "rps", 50, "maximum requests per second to the registry")
	fs.IntVar(&opts.burst, "burst", 10, "maximum burst of requests to the registry")
	fs.DurationVar(&opts.timeout, "timeout", 30*time.Second, "timeout for registry responses")
	fs.StringSliceVar(&opts.insecure, "insecure", nil, "registry hosts to connect to without verifying TLS certificates")
	fs.BoolVar(&opts.noSave, "no-save", false, "keep credentials in memory only")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "log every request made to the registry")

	cmd.AddCommand(
		newConnect(opts).Command(),
		newDisconnect(opts).Command(),
		newStatus(opts).Command(),
		newRepos(opts).Command(),
		newTags(opts).Command(),
		newInspect(opts).Command(),
		newManifest(opts).Command(),
		newBlob(opts).Command(),
		newDelete(opts).Command(),
		newCache(opts).Command(),
		newVersionCommand(),
	)
	return cmd
}

// envFallback sets any flag not given on the command line from
// REGBROWSER_<FLAG>, e.g. REGBROWSER_CACHE_BACKEND.
func envFallback(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		name := envPrefix + strings.ToUpper(strings.Replace(f.Name, "-", "_", -1))
		if v, ok := os.LookupEnv(name); ok {
			if setErr := fs.Set(f.Name, v); setErr != nil {
				err = errors.Wrapf(setErr, "invalid value in %s", name)
			}
		}
	})
	return err
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	if err := envFallback(cmd.Flags()); err != nil {
		return err
	}

	opts.logger = log.NewNopLogger()
	if opts.verbose {
		opts.logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		opts.logger = log.With(opts.logger, "ts", log.DefaultTimestampUTC)
	}

	storage, err := opts.storage()
	if err != nil {
		return err
	}
	store := cache.NewStore(cache.InstrumentStorage(storage), log.With(opts.logger, "component", "cache"))

	var provider credentials.Provider = credentials.FileProvider{Path: filepath.Join(opts.configDir, credentials.Filename)}
	if opts.noSave {
		provider = &credentials.MemoryProvider{}
	}

	factory := &registry.RemoteClientFactory{
		Logger:        log.With(opts.logger, "component", "registry"),
		Limiters:      &middleware.RateLimiters{RPS: opts.rps, Burst: opts.burst, Logger: opts.logger},
		Throttler:     throttle.New(log.With(opts.logger, "component", "throttle"), throttle.WithDelay(opts.delay)),
		Trace:         opts.verbose,
		Timeout:       opts.timeout,
		InsecureHosts: opts.insecure,
	}

	opts.Browser = browser.New(browser.Config{
		Provider: provider,
		Cache:    store,
		Factory:  factory,
		Logger:   log.With(opts.logger, "component", "browser"),
	})
	return nil
}

func (opts *rootOpts) storage() (cache.Storage, error) {
	switch opts.cacheBackend {
	case backendMemory:
		return cache.NewMemoryStorage(), nil
	case backendSQLite:
		s, err := sqlite.Open(filepath.Join(opts.configDir, sqlite.DBFilename))
		if err != nil {
			return nil, err
		}
		opts.closers = append(opts.closers, s.Close)
		return s, nil
	case backendMemcached:
		mc := memcached.NewFixedServerMemcacheClient(memcached.MemcacheConfig{
			Timeout:        opts.timeout,
			UpdateInterval: time.Minute,
			Logger:         log.With(opts.logger, "component", "memcached"),
		}, opts.memcachedHosts...)
		opts.closers = append(opts.closers, func() error { mc.Stop(); return nil })
		return mc, nil
	case backendRedis:
		host, port, err := net.SplitHostPort(opts.redisAddr)
		if err != nil {
			return nil, errors.Wrap(err, "parsing --redis-addr")
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, errors.Wrap(err, "parsing --redis-addr")
		}
		r := redis.NewRedisClient(redis.RedisConfig{
			Service: host,
			Port:    p,
			Timeout: opts.timeout,
		})
		opts.closers = append(opts.closers, r.Close)
		return r, nil
	}
	return nil, newUsageError(fmt.Sprintf("unknown cache backend %q", opts.cacheBackend))
}

// Close releases the cache backend.
func (opts *rootOpts) Close() {
	for _, c := range opts.closers {
		c()
	}
	opts.closers = nil
}

// connected picks up the saved session, for commands that need one.
func (opts *rootOpts) connected(ctx context.Context) error {
	ok, err := opts.Browser.Reconnect(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return browser.ErrNotConnected
	}
	return nil
}
