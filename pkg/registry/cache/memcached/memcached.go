/* This package implements cache storage using memcached.

Items are given an expiry well past the cache TTL, so the store sees
them go stale and deletes them itself; memcached's expiry is only
garbage collection.

memcached will still evict things when under memory pressure. We can
recover from that -- we'll just get a cache miss, and fetch it again.

memcached cannot list its keys, so the keys written are also recorded
in an index item, updated with compare-and-swap.
*/
package memcached

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/fluxcd/regbrowser/pkg/registry/cache"
)

// IndexKey holds the newline-separated list of keys written. It is
// outside the cache prefix so clearing the cache leaves it alone.
const IndexKey = cache.Prefix + "-index"

const casRetries = 10

// MemcacheClient is a memcache client that gets its server list from SRV
// records, and periodically updates that ServerList.
type MemcacheClient struct {
	client     *memcache.Client
	serverList *memcache.ServerList
	hostname   string
	service    string
	expiry     time.Duration
	logger     log.Logger

	quit chan struct{}
	wait sync.WaitGroup
}

// MemcacheConfig defines how a MemcacheClient should be constructed.
type MemcacheConfig struct {
	Host           string
	Service        string
	Timeout        time.Duration
	UpdateInterval time.Duration
	Logger         log.Logger
	MaxIdleConns   int
}

func newClient(config MemcacheConfig, servers *memcache.ServerList) *MemcacheClient {
	client := memcache.NewFromSelector(servers)
	client.Timeout = config.Timeout
	client.MaxIdleConns = config.MaxIdleConns
	if config.Logger == nil {
		config.Logger = log.NewNopLogger()
	}
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = time.Minute
	}
	return &MemcacheClient{
		client:     client,
		serverList: servers,
		hostname:   config.Host,
		service:    config.Service,
		expiry:     cache.BackendExpiry(cache.TTL),
		logger:     config.Logger,
		quit:       make(chan struct{}),
	}
}

func NewMemcacheClient(config MemcacheConfig) *MemcacheClient {
	var servers memcache.ServerList
	newClient := newClient(config, &servers)

	err := newClient.updateFromSRVRecords()
	if err != nil {
		newClient.logger.Log("err", errors.Wrapf(err, "Error setting memcache servers to '%v'", config.Host))
	}

	newClient.wait.Add(1)
	go newClient.updateLoop(config.UpdateInterval, newClient.updateFromSRVRecords)
	return newClient
}

// Does not use DNS, accepts static list of servers.
func NewFixedServerMemcacheClient(config MemcacheConfig, addresses ...string) *MemcacheClient {
	var servers memcache.ServerList
	servers.SetServers(addresses...)
	newClient := newClient(config, &servers)

	newClient.wait.Add(1)
	go newClient.updateLoop(config.UpdateInterval, func() error {
		return servers.SetServers(addresses...)
	})
	return newClient
}

func (c *MemcacheClient) Get(key string) ([]byte, error) {
	item, err := c.client.Get(key)
	if err == memcache.ErrCacheMiss {
		return nil, cache.ErrNotCached
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching from memcache")
	}
	return item.Value, nil
}

func (c *MemcacheClient) Set(key string, value []byte) error {
	if err := c.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(c.expiry.Seconds()),
	}); err != nil {
		return errors.Wrap(err, "storing in memcache")
	}
	return c.updateIndex(func(keys map[string]bool) { keys[key] = true })
}

func (c *MemcacheClient) Delete(key string) error {
	if err := c.client.Delete(key); err != nil && err != memcache.ErrCacheMiss {
		return errors.Wrap(err, "deleting from memcache")
	}
	return c.updateIndex(func(keys map[string]bool) { delete(keys, key) })
}

// Keys lists the indexed keys with the prefix. A key can be listed
// after memcached has evicted it.
func (c *MemcacheClient) Keys(prefix string) ([]string, error) {
	item, err := c.client.Get(IndexKey)
	if err == memcache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "fetching key index from memcache")
	}
	var keys []string
	for k := range parseIndex(item.Value) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func parseIndex(value []byte) map[string]bool {
	keys := map[string]bool{}
	for _, k := range strings.Split(string(value), "\n") {
		if k != "" {
			keys[k] = true
		}
	}
	return keys
}

func formatIndex(keys map[string]bool) []byte {
	var list []string
	for k := range keys {
		list = append(list, k)
	}
	sort.Strings(list)
	return []byte(strings.Join(list, "\n"))
}

func (c *MemcacheClient) updateIndex(update func(map[string]bool)) error {
	for i := 0; i < casRetries; i++ {
		item, err := c.client.Get(IndexKey)
		switch {
		case err == memcache.ErrCacheMiss:
			keys := map[string]bool{}
			update(keys)
			err = c.client.Add(&memcache.Item{Key: IndexKey, Value: formatIndex(keys)})
			if err == memcache.ErrNotStored {
				continue
			}
		case err != nil:
			return errors.Wrap(err, "fetching key index from memcache")
		default:
			keys := parseIndex(item.Value)
			update(keys)
			item.Value = formatIndex(keys)
			err = c.client.CompareAndSwap(item)
			if err == memcache.ErrCASConflict || err == memcache.ErrNotStored {
				continue
			}
		}
		return errors.Wrap(err, "updating key index in memcache")
	}
	return fmt.Errorf("key index in memcache still contended after %d attempts", casRetries)
}

// Stop the memcache client.
func (c *MemcacheClient) Stop() {
	close(c.quit)
	c.wait.Wait()
}

func (c *MemcacheClient) updateLoop(updateInterval time.Duration, update func() error) {
	defer c.wait.Done()
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := update(); err != nil {
				c.logger.Log("err", errors.Wrap(err, "error updating memcache servers"))
			}
		case <-c.quit:
			return
		}
	}
}

// updateMemcacheServers sets a memcache server list from SRV records. SRV
// priority & weight are ignored.
func (c *MemcacheClient) updateFromSRVRecords() error {
	_, addrs, err := net.LookupSRV(c.service, "tcp", c.hostname)
	if err != nil {
		return err
	}
	var servers []string
	for _, srv := range addrs {
		servers = append(servers, fmt.Sprintf("%s:%d", srv.Target, srv.Port))
	}
	// ServerList deterministically maps keys to _index_ of the server list.
	// Since DNS returns records in different order each time, we sort to
	// guarantee best possible match between nodes.
	sort.Strings(servers)
	return c.serverList.SetServers(servers...)
}
