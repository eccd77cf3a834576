package mock

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fluxcd/regbrowser/pkg/registry"
)

var errNotStubbed = errors.New("not stubbed")

// Client is a registry.Client made of functions. A nil function
// answers with an error.
type Client struct {
	PingFn            func() error
	AllRepositoriesFn func(pageSize int) ([]string, error)
	TagsFn            func(repository string) ([]string, error)
	ManifestFn        func(repository, reference string) (*registry.Manifest, error)
	BlobHeadFn        func(repository, digest string) (registry.BlobInfo, error)
	ImageInfoFn       func(repository, tag string) (*registry.ImageInfo, error)
	DeleteManifestFn  func(repository, digest string) error
}

func (m *Client) Ping(context.Context) error {
	if m.PingFn == nil {
		return nil
	}
	return m.PingFn()
}

func (m *Client) AllRepositories(_ context.Context, pageSize int) ([]string, error) {
	if m.AllRepositoriesFn == nil {
		return nil, errNotStubbed
	}
	return m.AllRepositoriesFn(pageSize)
}

func (m *Client) Tags(_ context.Context, repository string) ([]string, error) {
	if m.TagsFn == nil {
		return nil, errNotStubbed
	}
	return m.TagsFn(repository)
}

func (m *Client) Manifest(_ context.Context, repository, reference string) (*registry.Manifest, error) {
	if m.ManifestFn == nil {
		return nil, errNotStubbed
	}
	return m.ManifestFn(repository, reference)
}

func (m *Client) BlobHead(_ context.Context, repository, digest string) (registry.BlobInfo, error) {
	if m.BlobHeadFn == nil {
		return registry.BlobInfo{}, errNotStubbed
	}
	return m.BlobHeadFn(repository, digest)
}

func (m *Client) ImageInfo(_ context.Context, repository, tag string) (*registry.ImageInfo, error) {
	if m.ImageInfoFn == nil {
		return nil, errNotStubbed
	}
	return m.ImageInfoFn(repository, tag)
}

func (m *Client) DeleteManifest(_ context.Context, repository, digest string) error {
	if m.DeleteManifestFn == nil {
		return errNotStubbed
	}
	return m.DeleteManifestFn(repository, digest)
}

var _ registry.Client = &Client{}

// ClientFactory hands out the same Client for any credentials, and
// remembers what it was asked for.
type ClientFactory struct {
	Client registry.Client
	Err    error

	Requested []registry.Credentials
	Succeeded int
}

func (m *ClientFactory) ClientFor(creds registry.Credentials) (registry.Client, error) {
	m.Requested = append(m.Requested, creds)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Client, nil
}

func (m *ClientFactory) Succeed(registry.Credentials) {
	m.Succeeded++
}

var _ registry.ClientFactory = &ClientFactory{}
