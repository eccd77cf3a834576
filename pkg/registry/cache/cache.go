package cache

import (
	"strings"

	"github.com/pkg/errors"

	regerr "github.com/fluxcd/regbrowser/pkg/errors"
)

// Prefix starts every key this package writes.
const Prefix = "regbrowser"

var (
	ErrNotCached = &regerr.Error{
		Type: regerr.Missing,
		Err:  errors.New("item not in cache"),
		Help: `Item not cached

It will be fetched from the registry the next time it is asked for.
`,
	}
	ErrQuotaExceeded = errors.New("cache storage quota exceeded")
)

// Storage is the backing k-v store.
type Storage interface {
	// Get returns ErrNotCached when there is nothing at key.
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// Delete of an absent key is not an error.
	Delete(key string) error
	// Keys lists the keys starting with prefix.
	Keys(prefix string) ([]string, error)
}

// Namespace separates the kinds of thing cached.
type Namespace string

const (
	NamespaceRepositories Namespace = "repositories"
	NamespaceTags         Namespace = "tags"
	NamespaceImageInfo    Namespace = "imageinfo"
)

// An interface to provide the key under which to store the data.
type Keyer interface {
	Key() string
}

type key struct {
	namespace  Namespace
	identifier string
}

func (k key) Key() string {
	return strings.Join([]string{Prefix, string(k.namespace), k.identifier}, ":")
}

// RepositoriesKey is where the registry's repository list goes.
func RepositoriesKey() Keyer {
	return key{NamespaceRepositories, "all"}
}

func TagsKey(repository string) Keyer {
	return key{NamespaceTags, repository}
}

func ImageInfoKey(repository, tag string) Keyer {
	return key{NamespaceImageInfo, repository + ":" + tag}
}

// NamespacePrefix is the common prefix of all keys in a namespace.
func NamespacePrefix(ns Namespace) string {
	return Prefix + ":" + string(ns) + ":"
}
