package browser

import (
	"context"

	"github.com/fluxcd/regbrowser/pkg/registry"
	"github.com/fluxcd/regbrowser/pkg/registry/cache"
)

// readRepositories and ImageInfo report each fetch that made it
// through to the factory, which lets a throttled host speed up again.
func (b *Browser) readRepositories(ctx context.Context, client registry.Client, creds registry.Credentials) ([]string, error) {
	var repositories []string
	if b.cache.Get(cache.RepositoriesKey(), &repositories) {
		return repositories, nil
	}
	repositories, err := client.AllRepositories(ctx, b.pageSize)
	if err != nil {
		return nil, err
	}
	b.factory.Succeed(creds)
	b.cache.Save(cache.RepositoriesKey(), repositories)
	return repositories, nil
}

// Repositories lists every repository in the registry.
func (b *Browser) Repositories(ctx context.Context) ([]string, error) {
	client, creds, err := b.currentSession()
	if err != nil {
		return nil, err
	}
	repositories, err := b.readRepositories(ctx, client, creds)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	if b.client == client {
		b.repositories = repositories
	}
	b.mu.Unlock()
	return repositories, nil
}

func (b *Browser) RefreshRepositories(ctx context.Context) ([]string, error) {
	if _, err := b.currentClient(); err != nil {
		return nil, err
	}
	b.cache.Clear(cache.RepositoriesKey())
	return b.Repositories(ctx)
}

func (b *Browser) Tags(ctx context.Context, repository string) ([]string, error) {
	client, err := b.currentClient()
	if err != nil {
		return nil, err
	}
	var tags []string
	if b.cache.Get(cache.TagsKey(repository), &tags) {
		return tags, nil
	}
	tags, err = client.Tags(ctx, repository)
	if err != nil {
		return nil, err
	}
	b.cache.Save(cache.TagsKey(repository), tags)
	return tags, nil
}

func (b *Browser) RefreshTags(ctx context.Context, repository string) ([]string, error) {
	if _, err := b.currentClient(); err != nil {
		return nil, err
	}
	b.cache.Clear(cache.TagsKey(repository))
	return b.Tags(ctx, repository)
}

func (b *Browser) ImageInfo(ctx context.Context, repository, tag string) (*registry.ImageInfo, error) {
	client, creds, err := b.currentSession()
	if err != nil {
		return nil, err
	}
	var info registry.ImageInfo
	if b.cache.Get(cache.ImageInfoKey(repository, tag), &info) {
		return &info, nil
	}
	fetched, err := client.ImageInfo(ctx, repository, tag)
	if err != nil {
		return nil, err
	}
	b.factory.Succeed(creds)
	b.cache.Save(cache.ImageInfoKey(repository, tag), fetched)
	return fetched, nil
}

func (b *Browser) RefreshImageInfo(ctx context.Context, repository, tag string) (*registry.ImageInfo, error) {
	if _, err := b.currentClient(); err != nil {
		return nil, err
	}
	b.cache.Clear(cache.ImageInfoKey(repository, tag))
	return b.ImageInfo(ctx, repository, tag)
}

// Manifest fetches a manifest as is; manifests are not cached.
func (b *Browser) Manifest(ctx context.Context, repository, reference string) (*registry.Manifest, error) {
	client, err := b.currentClient()
	if err != nil {
		return nil, err
	}
	return client.Manifest(ctx, repository, reference)
}

func (b *Browser) BlobHead(ctx context.Context, repository, digest string) (registry.BlobInfo, error) {
	client, err := b.currentClient()
	if err != nil {
		return registry.BlobInfo{}, err
	}
	return client.BlobHead(ctx, repository, digest)
}

// DeleteManifest deletes by digest, then forgets the repository's
// tags, since some of them may have gone with it.
func (b *Browser) DeleteManifest(ctx context.Context, repository, digest string) error {
	client, err := b.currentClient()
	if err != nil {
		return err
	}
	if err := client.DeleteManifest(ctx, repository, digest); err != nil {
		return err
	}
	b.cache.Clear(cache.TagsKey(repository))
	return nil
}
