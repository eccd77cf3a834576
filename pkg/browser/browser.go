// Package browser ties a registry client, the metadata cache and a
// credentials provider into one session with a registry.
package browser

import (
	"context"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/fluxcd/regbrowser/pkg/credentials"
	regerr "github.com/fluxcd/regbrowser/pkg/errors"
	"github.com/fluxcd/regbrowser/pkg/registry"
	"github.com/fluxcd/regbrowser/pkg/registry/cache"
)

var ErrNotConnected = &regerr.Error{
	Type: regerr.User,
	Err:  errors.Wrap(registry.ErrConfiguration, "not connected to a registry"),
	Help: `Not connected to a registry

Connect first, e.g.

    regbrowser connect https://registry.example.com -u me
`,
}

type Config struct {
	Provider credentials.Provider
	Cache    *cache.Store
	Factory  registry.ClientFactory
	PageSize int
	Logger   log.Logger
}

// Browser is a session with one registry at a time. It is safe for
// concurrent use; network calls are made without holding its lock.
type Browser struct {
	provider credentials.Provider
	cache    *cache.Store
	factory  registry.ClientFactory
	pageSize int
	logger   log.Logger

	mu           sync.RWMutex
	client       registry.Client
	creds        *registry.Credentials
	repositories []string
	repository   string
	tag          string
}

func New(config Config) *Browser {
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	if config.PageSize <= 0 {
		config.PageSize = registry.DefaultPageSize
	}
	if config.Provider == nil {
		config.Provider = &credentials.MemoryProvider{}
	}
	if config.Cache == nil {
		config.Cache = cache.NewStore(cache.NewMemoryStorage(), config.Logger)
	}
	return &Browser{
		provider: config.Provider,
		cache:    config.Cache,
		factory:  config.Factory,
		pageSize: config.PageSize,
		logger:   config.Logger,
	}
}

// Connect saves the credentials and checks them against the registry.
// If anything fails the saved credentials are cleared again.
func (b *Browser) Connect(ctx context.Context, registryURL, username, password string) error {
	method, err := b.provider.Save(registryURL, username, password)
	if err != nil {
		b.reset()
		return errors.Wrap(err, "saving credentials")
	}
	b.logger.Log("info", "saved credentials", "method", method)
	creds := registry.Credentials{RegistryURL: registryURL, Username: username, Password: password}
	if err := b.verify(ctx, creds); err != nil {
		b.rollback()
		return err
	}
	return nil
}

// Reconnect picks up saved credentials. It reports false, with no
// error, if there are none. Credentials the registry refuses, or that
// name no usable registry, are cleared; after any other failure they
// are kept for the next attempt.
func (b *Browser) Reconnect(ctx context.Context) (bool, error) {
	creds, err := b.provider.Load()
	if err != nil {
		b.reset()
		return false, errors.Wrap(err, "loading credentials")
	}
	if creds == nil {
		b.reset()
		return false, nil
	}
	if err := b.verify(ctx, *creds); err != nil {
		if registry.IsAuthentication(err) || registry.IsConfiguration(err) {
			b.rollback()
		} else {
			b.reset()
		}
		return false, err
	}
	return true, nil
}

// Disconnect forgets the credentials and everything derived from
// them. Cached metadata is kept.
func (b *Browser) Disconnect() error {
	b.reset()
	return errors.Wrap(b.provider.Clear(), "clearing credentials")
}

func (b *Browser) verify(ctx context.Context, creds registry.Credentials) error {
	client, err := b.factory.ClientFor(creds)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		return err
	}
	repositories, err := b.readRepositories(ctx, client, creds)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = client
	b.creds = &creds
	b.repositories = repositories
	b.repository, b.tag = "", ""
	return nil
}

func (b *Browser) rollback() {
	b.reset()
	if err := b.provider.Clear(); err != nil {
		b.logger.Log("warn", "could not clear credentials after failed connection", "err", err)
	}
}

func (b *Browser) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.client = nil
	b.creds = nil
	b.repositories = nil
	b.repository, b.tag = "", ""
}

func (b *Browser) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client != nil
}

// Credentials returns a copy of the credentials in use, or nil.
func (b *Browser) Credentials() *registry.Credentials {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.creds == nil {
		return nil
	}
	c := *b.creds
	return &c
}

func (b *Browser) StorageInfo() credentials.Description {
	return b.provider.Describe()
}

func (b *Browser) Cache() *cache.Store {
	return b.cache
}

func (b *Browser) currentClient() (registry.Client, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.client == nil {
		return nil, ErrNotConnected
	}
	return b.client, nil
}

func (b *Browser) currentSession() (registry.Client, registry.Credentials, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.client == nil {
		return nil, registry.Credentials{}, ErrNotConnected
	}
	return b.client, *b.creds, nil
}
