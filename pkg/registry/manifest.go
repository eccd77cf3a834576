package registry

import (
	"encoding/json"
	"strings"

	"github.com/docker/distribution/manifest/manifestlist"
	"github.com/docker/distribution/manifest/schema2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Media types a registry may answer a manifest request with.
const (
	MediaTypeDockerManifestList = manifestlist.MediaTypeManifestList
	MediaTypeOCIImageIndex      = ocispec.MediaTypeImageIndex
	MediaTypeDockerManifest     = schema2.MediaTypeManifest
	MediaTypeOCIManifest        = ocispec.MediaTypeImageManifest
)

// manifestAccept lists what we ask for, richest first, so a registry
// holding several representations hands back the list/index.
var manifestAccept = []string{
	MediaTypeDockerManifestList,
	MediaTypeOCIImageIndex,
	MediaTypeDockerManifest,
	MediaTypeOCIManifest,
	"application/json",
}

// Descriptor points at a blob or, in a manifest list, at another
// manifest.
type Descriptor struct {
	MediaType string    `json:"mediaType,omitempty"`
	Digest    string    `json:"digest,omitempty"`
	Size      int64     `json:"size"`
	Platform  *Platform `json:"platform,omitempty"`
}

// Manifest is either a single-platform image manifest (Config and
// Layers) or a manifest list / image index (Manifests). Use Classify
// to tell which.
type Manifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType,omitempty"`
	Config        *Descriptor  `json:"config,omitempty"`
	Layers        []Descriptor `json:"layers,omitempty"`
	Manifests     []Descriptor `json:"manifests,omitempty"`

	// Digest is the Docker-Content-Digest the registry reported, if any.
	Digest string `json:"digest,omitempty"`
	// Raw is the document as served.
	Raw json.RawMessage `json:"-"`
}

func parseManifest(body []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, malformedError(err)
	}
	m.Raw = json.RawMessage(body)
	return &m, nil
}

// Kind discriminates the two shapes a Manifest can take.
type Kind int

const (
	KindInvalid Kind = iota
	KindImage
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindList:
		return "list"
	}
	return "invalid"
}

func mediaTypeIs(mt string, candidates ...string) bool {
	mt = strings.TrimSpace(strings.SplitN(mt, ";", 2)[0])
	for _, c := range candidates {
		if mt == c {
			return true
		}
	}
	return false
}

// IsManifestList says whether the manifest enumerates per-platform
// manifests. Some registries leave out or mangle the media type, so a
// manifest with a manifests array and no layers array counts too.
func IsManifestList(m *Manifest) bool {
	if m == nil {
		return false
	}
	if mediaTypeIs(m.MediaType, MediaTypeDockerManifestList, MediaTypeOCIImageIndex) {
		return true
	}
	return m.Manifests != nil && m.Layers == nil
}

// Classify decides which shape the manifest has. A document with
// neither manifests nor layers/config is KindInvalid rather than a
// guess.
func Classify(m *Manifest) Kind {
	switch {
	case m == nil:
		return KindInvalid
	case IsManifestList(m):
		return KindList
	case m.Layers != nil || m.Config != nil:
		return KindImage
	}
	return KindInvalid
}
