package registry

import (
	"context"

	"github.com/pkg/errors"
)

// ImageInfo resolves a tag to an ImageInfo. For a manifest list it
// summarises the platforms and looks at the first one for creation
// details; for a single-platform manifest it reads the config blob.
// Only the first manifest fetch can fail the call: the sub-fetches
// are best effort, and when they fail the result just has fewer
// fields filled in.
func (r *Remote) ImageInfo(ctx context.Context, repository, tag string) (*ImageInfo, error) {
	m, err := r.Manifest(ctx, repository, tag)
	if err != nil {
		return nil, err
	}
	switch Classify(m) {
	case KindList:
		return r.resolveList(ctx, repository, tag, m), nil
	case KindImage:
		return r.resolveImage(ctx, repository, tag, m), nil
	}
	return nil, malformedError(errors.Errorf("manifest for %s:%s has neither manifests nor layers", repository, tag))
}

func (r *Remote) resolveList(ctx context.Context, repository, tag string, list *Manifest) *ImageInfo {
	info := &ImageInfo{
		Manifest:        list,
		Platforms:       []Platform{},
		IsMultiPlatform: true,
	}
	for _, entry := range list.Manifests {
		info.TotalSize += entry.Size
		if entry.Platform == nil {
			continue
		}
		p := *entry.Platform
		p.Digest = entry.Digest
		p.Size = entry.Size
		info.Platforms = append(info.Platforms, p)
	}
	if len(info.Platforms) == 0 {
		return info
	}

	first := info.Platforms[0]
	info.Architecture = first.Architecture
	info.OS = first.OS

	sub, err := r.platformManifest(ctx, repository, first)
	if err != nil {
		r.logger.Log("warn", "could not fetch first platform manifest", "repository", repository, "tag", tag, "platform", first.String(), "err", err)
		return info
	}
	info.FirstManifest = sub

	config, err := r.configFor(ctx, repository, sub)
	if err != nil {
		r.logger.Log("warn", "could not fetch first platform config", "repository", repository, "tag", tag, "platform", first.String(), "err", err)
		return info
	}
	info.applyConfig(config)
	return info
}

func (r *Remote) resolveImage(ctx context.Context, repository, tag string, m *Manifest) *ImageInfo {
	info := &ImageInfo{
		Manifest:  m,
		Platforms: []Platform{},
	}
	for _, layer := range m.Layers {
		info.TotalSize += layer.Size
	}
	if m.Config == nil {
		return info
	}
	info.TotalSize += m.Config.Size
	if m.Config.Digest == "" {
		return info
	}

	config, err := r.ImageConfig(ctx, repository, m.Config.Digest)
	if err != nil {
		r.logger.Log("warn", "could not fetch image config", "repository", repository, "tag", tag, "err", err)
		return info
	}
	info.applyConfig(config)
	info.Platforms = append(info.Platforms, config.platform())
	return info
}

// platformManifest fetches the manifest a list entry points at.
func (r *Remote) platformManifest(ctx context.Context, repository string, p Platform) (*Manifest, error) {
	if p.Digest == "" {
		return nil, errors.New("platform entry has no digest")
	}
	m, err := r.Manifest(ctx, repository, p.Digest)
	if err != nil {
		return nil, err
	}
	if Classify(m) != KindImage {
		return nil, errors.Errorf("platform manifest %s is a %s, not an image", p.Digest, Classify(m))
	}
	return m, nil
}

// configFor fetches the config blob of a single-platform manifest.
func (r *Remote) configFor(ctx context.Context, repository string, m *Manifest) (*ImageConfig, error) {
	if m.Config == nil || m.Config.Digest == "" {
		return nil, errors.New("manifest has no config digest")
	}
	return r.ImageConfig(ctx, repository, m.Config.Digest)
}
