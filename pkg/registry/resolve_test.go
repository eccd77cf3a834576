package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/regbrowser/pkg/registry"
	"github.com/fluxcd/regbrowser/pkg/registry/mock"
)

func imageManifest(config string, configSize int64, layerSizes ...int64) registry.Manifest {
	m := registry.Manifest{
		SchemaVersion: 2,
		MediaType:     registry.MediaTypeDockerManifest,
		Config:        &registry.Descriptor{Digest: config, Size: configSize},
		Layers:        []registry.Descriptor{},
	}
	for _, s := range layerSizes {
		m.Layers = append(m.Layers, registry.Descriptor{Digest: "sha256:layer", Size: s})
	}
	return m
}

func TestImageInfo_SinglePlatform(t *testing.T) {
	reg := mock.NewRegistry()
	config := reg.AddBlob(map[string]interface{}{
		"created":        "2020-01-02T03:04:05Z",
		"architecture":   "amd64",
		"os":             "linux",
		"author":         "someone",
		"docker_version": "19.03.5",
	})
	reg.AddManifest("app", registry.MediaTypeDockerManifest, imageManifest(config, 5, 10, 20, 30), "v1")
	ts := reg.Server()
	defer ts.Close()

	info, err := newRemote(t, ts.URL).ImageInfo(context.Background(), "app", "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(65), info.TotalSize)
	assert.False(t, info.IsMultiPlatform)
	assert.Equal(t, "2020-01-02T03:04:05Z", info.Created)
	assert.Equal(t, "someone", info.Author)
	assert.Equal(t, "19.03.5", info.DockerVersion)
	assert.Equal(t, "amd64", info.Architecture)
	assert.Equal(t, "linux", info.OS)
	assert.Equal(t, []registry.Platform{{OS: "linux", Architecture: "amd64"}}, info.Platforms)
	assert.Nil(t, info.FirstManifest)
	require.NotNil(t, info.Config)
}

func TestImageInfo_SinglePlatformNestedPlatform(t *testing.T) {
	reg := mock.NewRegistry()
	config := reg.AddBlob(map[string]interface{}{
		"platform": map[string]string{"os": "linux", "architecture": "arm", "variant": "v7"},
	})
	reg.AddManifest("app", registry.MediaTypeOCIManifest, imageManifest(config, 1, 1), "v1")
	ts := reg.Server()
	defer ts.Close()

	info, err := newRemote(t, ts.URL).ImageInfo(context.Background(), "app", "v1")
	require.NoError(t, err)
	assert.Equal(t, []registry.Platform{{OS: "linux", Architecture: "arm", Variant: "v7"}}, info.Platforms)
	assert.Equal(t, "arm", info.Architecture)
}

func TestImageInfo_SinglePlatformMissingConfig(t *testing.T) {
	reg := mock.NewRegistry()
	// config digest is well-formed but nothing is stored there
	missing := "sha256:0000000000000000000000000000000000000000000000000000000000000000"
	reg.AddManifest("app", registry.MediaTypeDockerManifest, imageManifest(missing, 5, 10, 20, 30), "v1")
	ts := reg.Server()
	defer ts.Close()

	info, err := newRemote(t, ts.URL).ImageInfo(context.Background(), "app", "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(65), info.TotalSize)
	assert.Nil(t, info.Config)
	assert.Empty(t, info.Created)
	assert.Empty(t, info.Platforms)
}

func addPlatformImage(reg *mock.Registry, arch string, created string) string {
	config := reg.AddBlob(map[string]string{"created": created, "architecture": arch, "os": "linux", "author": "builder"})
	return reg.AddManifest("multi", registry.MediaTypeDockerManifest, imageManifest(config, 2, 3))
}

func TestImageInfo_ManifestList(t *testing.T) {
	reg := mock.NewRegistry()
	amd64 := addPlatformImage(reg, "amd64", "2020-02-02T00:00:00Z")
	arm64 := addPlatformImage(reg, "arm64", "2020-02-03T00:00:00Z")
	list := registry.Manifest{
		SchemaVersion: 2,
		MediaType:     registry.MediaTypeDockerManifestList,
		Manifests: []registry.Descriptor{
			{Digest: amd64, Size: 100, Platform: &registry.Platform{OS: "linux", Architecture: "amd64"}},
			{Digest: arm64, Size: 150, Platform: &registry.Platform{OS: "linux", Architecture: "arm64", Variant: "v8"}},
		},
	}
	reg.AddManifest("multi", registry.MediaTypeDockerManifestList, list, "latest")
	ts := reg.Server()
	defer ts.Close()

	info, err := newRemote(t, ts.URL).ImageInfo(context.Background(), "multi", "latest")
	require.NoError(t, err)
	assert.True(t, info.IsMultiPlatform)
	assert.Equal(t, int64(250), info.TotalSize)
	require.Len(t, info.Platforms, 2)
	assert.Equal(t, registry.Platform{OS: "linux", Architecture: "amd64", Digest: amd64, Size: 100}, info.Platforms[0])
	assert.Equal(t, "v8", info.Platforms[1].Variant)
	assert.Equal(t, "amd64", info.Architecture)
	assert.Equal(t, "linux", info.OS)
	assert.Equal(t, "2020-02-02T00:00:00Z", info.Created)
	assert.Equal(t, "builder", info.Author)
	require.NotNil(t, info.FirstManifest)
	assert.Equal(t, amd64, info.FirstManifest.Digest)

	// list, first sub-manifest, its config; nothing for the second platform
	assert.Equal(t, 3, reg.Count("GET /v2/multi/"))
}

func TestImageInfo_ManifestListDegradesWhenSubManifestFails(t *testing.T) {
	reg := mock.NewRegistry()
	list := registry.Manifest{
		SchemaVersion: 2,
		MediaType:     registry.MediaTypeOCIImageIndex,
		Manifests: []registry.Descriptor{
			{Digest: "sha256:1111111111111111111111111111111111111111111111111111111111111111", Size: 100, Platform: &registry.Platform{OS: "linux", Architecture: "amd64"}},
			{Digest: "sha256:2222222222222222222222222222222222222222222222222222222222222222", Size: 150, Platform: &registry.Platform{OS: "linux", Architecture: "s390x"}},
		},
	}
	reg.AddManifest("multi", registry.MediaTypeOCIImageIndex, list, "latest")
	ts := reg.Server()
	defer ts.Close()

	info, err := newRemote(t, ts.URL).ImageInfo(context.Background(), "multi", "latest")
	require.NoError(t, err)
	assert.True(t, info.IsMultiPlatform)
	assert.Equal(t, int64(250), info.TotalSize)
	assert.Len(t, info.Platforms, 2)
	assert.Empty(t, info.Created)
	assert.Nil(t, info.FirstManifest)
	assert.Equal(t, "amd64", info.Architecture)
}

func TestImageInfo_ListEntriesWithoutPlatform(t *testing.T) {
	reg := mock.NewRegistry()
	list := registry.Manifest{
		SchemaVersion: 2,
		Manifests: []registry.Descriptor{
			{Digest: "sha256:3333333333333333333333333333333333333333333333333333333333333333", Size: 7},
			{Size: 5, Platform: &registry.Platform{OS: "linux", Architecture: "ppc64le"}},
		},
	}
	reg.AddManifest("odd", "application/json", list, "latest")
	ts := reg.Server()
	defer ts.Close()

	info, err := newRemote(t, ts.URL).ImageInfo(context.Background(), "odd", "latest")
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.TotalSize)
	require.Len(t, info.Platforms, 1)
	assert.Equal(t, "ppc64le", info.Platforms[0].Architecture)
	// the only platform has no digest to follow
	assert.Nil(t, info.FirstManifest)
	assert.Equal(t, 1, reg.Count("GET"))
}

func TestImageInfo_InvalidManifest(t *testing.T) {
	reg := mock.NewRegistry()
	reg.AddManifest("bad", "application/json", map[string]int{"schemaVersion": 2}, "latest")
	ts := reg.Server()
	defer ts.Close()

	_, err := newRemote(t, ts.URL).ImageInfo(context.Background(), "bad", "latest")
	assert.True(t, registry.IsMalformed(err))
}

func TestImageInfo_MissingTagFails(t *testing.T) {
	ts := mock.NewRegistry().Server()
	defer ts.Close()

	_, err := newRemote(t, ts.URL).ImageInfo(context.Background(), "app", "nope")
	assert.True(t, registry.IsNotFound(err))
}
