package browser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	regerr "github.com/fluxcd/regbrowser/pkg/errors"
	"github.com/fluxcd/regbrowser/pkg/registry"
)

func mustParse(t *testing.T, text string) Matcher {
	m, err := ParsePattern(text)
	require.NoError(t, err)
	return m
}

func TestParsePattern_Kinds(t *testing.T) {
	for text, want := range map[string]string{
		"library/*":      "glob:library/*",
		"glob:library/*": "glob:library/*",
		"semver:~1.17":   "semver:~1.17",
		"regex:^v[0-9]":  "regexp:^v[0-9]",
		"regexp:^v[0-9]": "regexp:^v[0-9]",
		"other:thing":    "glob:other:thing",
	} {
		assert.Equal(t, want, mustParse(t, text).String(), text)
	}
}

func TestParsePattern_RejectsBadPatterns(t *testing.T) {
	for _, text := range []string{"regexp:(", "semver:latest", "regex:[a-"} {
		_, err := ParsePattern(text)
		assert.True(t, regerr.IsUser(err), text)
	}
	_, err := ParsePatterns([]string{"library/*", "regexp:("})
	assert.Error(t, err)
}

func TestGlobMatcher(t *testing.T) {
	all := mustParse(t, "*")
	for _, name := range []string{"", "1", "foo"} {
		assert.True(t, all.Match(name))
	}
	namespace := mustParse(t, "library/*")
	assert.True(t, namespace.Match("library/nginx"))
	assert.False(t, namespace.Match("team/library"))
}

func TestVersionMatcher(t *testing.T) {
	for _, tt := range []struct {
		pattern string
		match   []string
		skip    []string
	}{
		{"semver:*", []string{"1", "1.0", "1.0.3"}, []string{"", "latest", "2.0.1-alpha.1"}},
		{"semver:~1", []string{"1", "1.2", "1.2.3"}, []string{"", "latest", "2.0.0"}},
	} {
		m := mustParse(t, tt.pattern)
		for _, tag := range tt.match {
			t.Run(fmt.Sprintf("%s[%q]", tt.pattern, tag), func(t *testing.T) {
				assert.True(t, m.Match(tag))
			})
		}
		for _, tag := range tt.skip {
			t.Run(fmt.Sprintf("%s[%q]", tt.pattern, tag), func(t *testing.T) {
				assert.False(t, m.Match(tag))
			})
		}
	}
}

func TestRegexpMatcher(t *testing.T) {
	m := mustParse(t, `regex:^\w{7}(?:\w)?$`)
	assert.True(t, m.Match("af14eb2"))
	assert.False(t, m.Match("946427ff-foo"))
}

func TestFilter(t *testing.T) {
	names := []string{"library/nginx", "library/redis", "team/app", "team/app-build"}
	filter := func(texts ...string) []string {
		ms, err := ParsePatterns(texts)
		require.NoError(t, err)
		return Filter(names, ms...)
	}
	assert.Equal(t, names, filter())
	assert.Equal(t, []string{"library/nginx", "library/redis"}, filter("library/*"))
	assert.Equal(t, []string{"library/redis", "team/app"}, filter("*/redis", "regexp:^team/app$"))
	assert.Equal(t, []string{}, filter("nothing"))
}

func TestSortTags(t *testing.T) {
	tags := []string{"latest", "1.10", "1.9.2", "1.10.0", "edge", "2.0.0-rc.1", "2.0.0"}
	assert.Equal(t, []string{"1.10", "1.10.0", "1.9.2", "2.0.0", "2.0.0-rc.1", "edge", "latest"}, SortTags(tags, false))
	assert.Equal(t, []string{"2.0.0", "2.0.0-rc.1", "1.10.0", "1.10", "1.9.2", "edge", "latest"}, SortTags(tags, true))
	assert.Equal(t, "latest", tags[0], "input is left alone")
}

func TestPresentablePlatforms(t *testing.T) {
	assert.Nil(t, PresentablePlatforms(nil))
	info := &registry.ImageInfo{Platforms: []registry.Platform{
		{OS: "linux", Architecture: "amd64"},
		{Digest: "sha256:abc"},
		{Architecture: "arm64"},
	}}
	assert.Equal(t, []registry.Platform{
		{OS: "linux", Architecture: "amd64"},
		{Architecture: "arm64"},
	}, PresentablePlatforms(info))
}
