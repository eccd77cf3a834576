package registry

// Platform describes what an image runs on. In a resolved ImageInfo
// it also carries the digest and size of the platform's manifest,
// when it came from a manifest list.
type Platform struct {
	OS           string `json:"os,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Variant      string `json:"variant,omitempty"`
	Digest       string `json:"digest,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

// Valid is false for a platform with neither OS nor architecture.
// Such platforms are kept, but not shown.
func (p Platform) Valid() bool {
	return p.OS != "" || p.Architecture != ""
}

func (p Platform) String() string {
	s := p.OS + "/" + p.Architecture
	if p.Variant != "" {
		s += "/" + p.Variant
	}
	return s
}

// ImageConfig is the part of an image config blob we look at.
// Ref: https://github.com/opencontainers/image-spec/blob/master/config.md
type ImageConfig struct {
	Created       string    `json:"created,omitempty"`
	Architecture  string    `json:"architecture,omitempty"`
	OS            string    `json:"os,omitempty"`
	Variant       string    `json:"variant,omitempty"`
	Author        string    `json:"author,omitempty"`
	DockerVersion string    `json:"docker_version,omitempty"`
	Platform      *Platform `json:"platform,omitempty"`
}

// platform reads the platform out of the config; some registries
// nest it, some put it at the top level.
func (c *ImageConfig) platform() Platform {
	if c.Platform != nil && c.Platform.Valid() {
		return Platform{
			OS:           c.Platform.OS,
			Architecture: c.Platform.Architecture,
			Variant:      c.Platform.Variant,
		}
	}
	return Platform{
		OS:           c.OS,
		Architecture: c.Architecture,
		Variant:      c.Variant,
	}
}

// ImageInfo is a resolved image: the same shape whether the tag
// named a single-platform image or a multi-platform list.
type ImageInfo struct {
	Manifest        *Manifest    `json:"manifest"`
	Config          *ImageConfig `json:"config"`
	TotalSize       int64        `json:"totalSize"`
	Platforms       []Platform   `json:"platforms"`
	IsMultiPlatform bool         `json:"isMultiPlatform"`
	Created         string       `json:"created,omitempty"`
	Architecture    string       `json:"architecture,omitempty"`
	OS              string       `json:"os,omitempty"`
	Author          string       `json:"author,omitempty"`
	DockerVersion   string       `json:"dockerVersion,omitempty"`
	FirstManifest   *Manifest    `json:"firstManifest,omitempty"`
}

// ValidPlatforms returns the platforms worth showing.
func (info *ImageInfo) ValidPlatforms() []Platform {
	var ps []Platform
	for _, p := range info.Platforms {
		if p.Valid() {
			ps = append(ps, p)
		}
	}
	return ps
}

func (info *ImageInfo) applyConfig(c *ImageConfig) {
	info.Config = c
	info.Created = c.Created
	info.Author = c.Author
	info.DockerVersion = c.DockerVersion
	p := c.platform()
	if info.Architecture == "" {
		info.Architecture = p.Architecture
	}
	if info.OS == "" {
		info.OS = p.OS
	}
}
