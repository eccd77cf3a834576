package browser

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/regbrowser/pkg/credentials"
	"github.com/fluxcd/regbrowser/pkg/registry"
	"github.com/fluxcd/regbrowser/pkg/registry/cache"
	"github.com/fluxcd/regbrowser/pkg/registry/mock"
)

type calls struct {
	repositories, tags, imageInfo, deletes int
}

func stubClient(c *calls) *mock.Client {
	return &mock.Client{
		AllRepositoriesFn: func(int) ([]string, error) {
			c.repositories++
			return []string{"app", "library/nginx"}, nil
		},
		TagsFn: func(repository string) ([]string, error) {
			c.tags++
			return []string{"v1", "v2"}, nil
		},
		ImageInfoFn: func(repository, tag string) (*registry.ImageInfo, error) {
			c.imageInfo++
			return &registry.ImageInfo{
				TotalSize: 65,
				Platforms: []registry.Platform{{OS: "linux", Architecture: "amd64"}},
			}, nil
		},
		DeleteManifestFn: func(repository, digest string) error {
			c.deletes++
			return nil
		},
	}
}

func newTestBrowser(client registry.Client) (*Browser, *mock.ClientFactory, *credentials.MemoryProvider, *cache.MemoryStorage) {
	factory := &mock.ClientFactory{Client: client}
	provider := &credentials.MemoryProvider{}
	storage := cache.NewMemoryStorage()
	b := New(Config{
		Provider: provider,
		Cache:    cache.NewStore(storage, log.NewNopLogger()),
		Factory:  factory,
		Logger:   log.NewNopLogger(),
	})
	return b, factory, provider, storage
}

func TestBrowser_NotConnected(t *testing.T) {
	b, _, _, _ := newTestBrowser(stubClient(&calls{}))
	ctx := context.Background()
	assert.False(t, b.Connected())
	assert.Nil(t, b.Credentials())

	_, err := b.Repositories(ctx)
	assert.True(t, registry.IsConfiguration(err))
	_, err = b.RefreshTags(ctx, "app")
	assert.True(t, registry.IsConfiguration(err))
	_, err = b.ImageInfo(ctx, "app", "v1")
	assert.True(t, registry.IsConfiguration(err))
	err = b.DeleteManifest(ctx, "app", "sha256:abc")
	assert.True(t, registry.IsConfiguration(err))
}

func TestBrowser_Connect(t *testing.T) {
	c := &calls{}
	b, factory, provider, _ := newTestBrowser(stubClient(c))
	ctx := context.Background()

	require.NoError(t, b.Connect(ctx, "https://registry.example.com", "me", "secret"))
	assert.True(t, b.Connected())
	assert.Equal(t, []string{"app", "library/nginx"}, b.KnownRepositories())
	assert.Equal(t, 1, c.repositories)
	assert.Equal(t, 1, factory.Succeeded)

	creds := b.Credentials()
	require.NotNil(t, creds)
	assert.Equal(t, "me", creds.Username)
	creds.Username = "changed"
	assert.Equal(t, "me", b.Credentials().Username)

	saved, err := provider.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://registry.example.com", saved.RegistryURL)
	assert.Equal(t, credentials.MethodMemory, b.StorageInfo().Method)
}

func TestBrowser_ConnectRollsBack(t *testing.T) {
	for name, client := range map[string]*mock.Client{
		"ping": {
			PingFn: func() error { return errors.New("connection refused") },
		},
		"catalog": {
			AllRepositoriesFn: func(int) ([]string, error) { return nil, errors.New("500") },
		},
	} {
		t.Run(name, func(t *testing.T) {
			b, factory, provider, _ := newTestBrowser(client)
			err := b.Connect(context.Background(), "https://registry.example.com", "me", "wrong")
			assert.Error(t, err)
			assert.False(t, b.Connected())
			assert.Nil(t, b.Credentials())
			assert.Equal(t, 0, factory.Succeeded)
			saved, err := provider.Load()
			assert.NoError(t, err)
			assert.Nil(t, saved)
		})
	}
}

func TestBrowser_ConnectBadURL(t *testing.T) {
	b, factory, provider, _ := newTestBrowser(nil)
	factory.Err = errors.New("bad url")
	assert.Error(t, b.Connect(context.Background(), "", "", ""))
	saved, _ := provider.Load()
	assert.Nil(t, saved)
}

func TestBrowser_Reconnect(t *testing.T) {
	c := &calls{}
	b, factory, provider, _ := newTestBrowser(stubClient(c))
	ctx := context.Background()

	ok, err := b.Reconnect(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, factory.Requested)

	_, err = provider.Save("https://registry.example.com", "me", "secret")
	require.NoError(t, err)
	ok, err = b.Reconnect(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, b.Connected())
	assert.Equal(t, "me", factory.Requested[0].Username)

	factory.Client = &mock.Client{PingFn: func() error { return errors.New("gone") }}
	ok, err = b.Reconnect(ctx)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.False(t, b.Connected())
	saved, _ := provider.Load()
	require.NotNil(t, saved, "transient failures keep the login")
	assert.Equal(t, "me", saved.Username)

	factory.Client = &mock.Client{PingFn: func() error { return registry.ErrAuthentication }}
	ok, err = b.Reconnect(ctx)
	assert.True(t, registry.IsAuthentication(err))
	assert.False(t, ok)
	assert.False(t, b.Connected())
	saved, _ = provider.Load()
	assert.Nil(t, saved)
}

func TestBrowser_ReconnectBadURLClearsCredentials(t *testing.T) {
	b, factory, provider, _ := newTestBrowser(nil)
	_, err := provider.Save("registry.example.com:bad", "", "")
	require.NoError(t, err)
	factory.Err = registry.ErrConfiguration
	ok, err := b.Reconnect(context.Background())
	assert.True(t, registry.IsConfiguration(err))
	assert.False(t, ok)
	saved, _ := provider.Load()
	assert.Nil(t, saved)
}

func TestBrowser_ReadThrough(t *testing.T) {
	c := &calls{}
	b, factory, _, _ := newTestBrowser(stubClient(c))
	ctx := context.Background()
	require.NoError(t, b.Connect(ctx, "https://registry.example.com", "", ""))

	for i := 0; i < 3; i++ {
		repos, err := b.Repositories(ctx)
		require.NoError(t, err)
		assert.Len(t, repos, 2)
		tags, err := b.Tags(ctx, "app")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1", "v2"}, tags)
		info, err := b.ImageInfo(ctx, "app", "v1")
		require.NoError(t, err)
		assert.Equal(t, int64(65), info.TotalSize)
		assert.Equal(t, "linux/amd64", info.Platforms[0].String())
	}
	assert.Equal(t, calls{repositories: 1, tags: 1, imageInfo: 1}, *c)
	assert.Equal(t, 2, factory.Succeeded, "fetched repositories and image info, cache hits don't count")

	_, err := b.Tags(ctx, "library/nginx")
	require.NoError(t, err)
	assert.Equal(t, 2, c.tags, "each repository has its own entry")

	_, err = b.RefreshRepositories(ctx)
	require.NoError(t, err)
	_, err = b.RefreshTags(ctx, "app")
	require.NoError(t, err)
	_, err = b.RefreshImageInfo(ctx, "app", "v1")
	require.NoError(t, err)
	assert.Equal(t, calls{repositories: 2, tags: 3, imageInfo: 2}, *c)
	assert.Equal(t, 4, factory.Succeeded)
}

func TestBrowser_ErrorsAreNotCached(t *testing.T) {
	fail := true
	client := &mock.Client{
		AllRepositoriesFn: func(int) ([]string, error) { return []string{"app"}, nil },
		TagsFn: func(string) ([]string, error) {
			if fail {
				return nil, errors.New("503")
			}
			return []string{"v1"}, nil
		},
	}
	b, _, _, storage := newTestBrowser(client)
	ctx := context.Background()
	require.NoError(t, b.Connect(ctx, "https://registry.example.com", "", ""))

	_, err := b.Tags(ctx, "app")
	assert.EqualError(t, err, "503")
	_, err = storage.Get(cache.TagsKey("app").Key())
	assert.Equal(t, cache.ErrNotCached, err)

	fail = false
	tags, err := b.Tags(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, tags)
}

func TestBrowser_DeleteManifest(t *testing.T) {
	c := &calls{}
	b, _, _, storage := newTestBrowser(stubClient(c))
	ctx := context.Background()
	require.NoError(t, b.Connect(ctx, "https://registry.example.com", "", ""))
	_, err := b.Tags(ctx, "app")
	require.NoError(t, err)
	_, err = b.Tags(ctx, "library/nginx")
	require.NoError(t, err)

	require.NoError(t, b.DeleteManifest(ctx, "app", "sha256:abc"))
	assert.Equal(t, 1, c.deletes)
	_, err = storage.Get(cache.TagsKey("app").Key())
	assert.Equal(t, cache.ErrNotCached, err)
	_, err = storage.Get(cache.TagsKey("library/nginx").Key())
	assert.NoError(t, err)
}

func TestBrowser_DeleteFailureKeepsCache(t *testing.T) {
	client := stubClient(&calls{})
	client.DeleteManifestFn = func(string, string) error { return errors.New("405") }
	b, _, _, storage := newTestBrowser(client)
	ctx := context.Background()
	require.NoError(t, b.Connect(ctx, "https://registry.example.com", "", ""))
	_, err := b.Tags(ctx, "app")
	require.NoError(t, err)

	assert.Error(t, b.DeleteManifest(ctx, "app", "sha256:abc"))
	_, err = storage.Get(cache.TagsKey("app").Key())
	assert.NoError(t, err)
}

func TestBrowser_Selection(t *testing.T) {
	b, _, _, _ := newTestBrowser(stubClient(&calls{}))
	b.SelectRepository("app")
	b.SelectTag("v1")
	repo, tag := b.Selection()
	assert.Equal(t, "app", repo)
	assert.Equal(t, "v1", tag)

	b.SelectRepository("other")
	repo, tag = b.Selection()
	assert.Equal(t, "other", repo)
	assert.Equal(t, "", tag)

	b.SelectTag("v2")
	b.ClearSelection()
	repo, tag = b.Selection()
	assert.Equal(t, "", repo+tag)
}

func TestBrowser_DisconnectKeepsCache(t *testing.T) {
	c := &calls{}
	b, _, provider, _ := newTestBrowser(stubClient(c))
	ctx := context.Background()
	require.NoError(t, b.Connect(ctx, "https://registry.example.com", "me", "secret"))
	_, err := b.Tags(ctx, "app")
	require.NoError(t, err)
	b.SelectRepository("app")

	require.NoError(t, b.Disconnect())
	assert.False(t, b.Connected())
	assert.Nil(t, b.Credentials())
	assert.Empty(t, b.KnownRepositories())
	repo, _ := b.Selection()
	assert.Equal(t, "", repo)
	saved, _ := provider.Load()
	assert.Nil(t, saved)

	require.NoError(t, b.Connect(ctx, "https://registry.example.com", "me", "secret"))
	_, err = b.Tags(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, 1, c.repositories)
	assert.Equal(t, 1, c.tags)
}

// End to end through the HTTP client and the fake registry.
func TestBrowser_RemoteRegistry(t *testing.T) {
	reg := mock.NewRegistry()
	reg.Username, reg.Password = "me", "secret"
	reg.AddRepositories("app")
	reg.SetTags("app", "v1")
	server := reg.Server()
	defer server.Close()

	b := New(Config{Factory: &registry.RemoteClientFactory{}})
	ctx := context.Background()

	err := b.Connect(ctx, server.URL, "me", "wrong")
	assert.True(t, registry.IsAuthentication(err))
	assert.Equal(t, http.StatusUnauthorized, registry.StatusCode(err))
	assert.False(t, b.Connected())

	require.NoError(t, b.Connect(ctx, server.URL, "me", "secret"))
	tags, err := b.Tags(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, tags)
	_, err = b.Tags(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Count("GET /v2/app/tags/list"))
}
