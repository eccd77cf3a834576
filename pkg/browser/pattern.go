package browser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/ryanuber/go-glob"

	regerr "github.com/fluxcd/regbrowser/pkg/errors"
	"github.com/fluxcd/regbrowser/pkg/registry"
)

// Matcher selects repository names or tags.
type Matcher interface {
	Match(name string) bool
	String() string
}

// A pattern's kind is chosen by prefix; text with no known prefix is
// a glob, so `library/*` and `glob:library/*` are the same.
const (
	kindGlob   = "glob"
	kindSemver = "semver"
	kindRegexp = "regexp"
)

var kindAliases = map[string]string{
	"glob":   kindGlob,
	"semver": kindSemver,
	"regexp": kindRegexp,
	"regex":  kindRegexp,
}

type globMatcher string

func (g globMatcher) Match(name string) bool { return glob.Glob(string(g), name) }
func (g globMatcher) String() string         { return kindGlob + ":" + string(g) }

// versionMatcher only matches tags that parse as versions.
type versionMatcher struct {
	text        string
	constraints *semver.Constraints
}

func (v versionMatcher) Match(tag string) bool {
	version, err := semver.NewVersion(tag)
	return err == nil && v.constraints.Check(version)
}

func (v versionMatcher) String() string { return kindSemver + ":" + v.text }

type regexpMatcher struct {
	re *regexp.Regexp
}

func (r regexpMatcher) Match(name string) bool { return r.re.MatchString(name) }
func (r regexpMatcher) String() string         { return kindRegexp + ":" + r.re.String() }

// ParsePattern turns a pattern as typed on the command line into a
// Matcher. Constraints and expressions that do not compile are
// reported rather than matching everything.
func ParsePattern(text string) (Matcher, error) {
	kind, body := kindGlob, text
	if i := strings.Index(text, ":"); i > 0 {
		if k, ok := kindAliases[text[:i]]; ok {
			kind, body = k, text[i+1:]
		}
	}
	switch kind {
	case kindSemver:
		c, err := semver.NewConstraint(body)
		if err != nil {
			return nil, patternError(text, err)
		}
		return versionMatcher{body, c}, nil
	case kindRegexp:
		r, err := regexp.Compile(body)
		if err != nil {
			return nil, patternError(text, err)
		}
		return regexpMatcher{r}, nil
	}
	return globMatcher(body), nil
}

// ParsePatterns parses each of texts, stopping at the first bad one.
func ParsePatterns(texts []string) ([]Matcher, error) {
	var matchers []Matcher
	for _, text := range texts {
		m, err := ParsePattern(text)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func patternError(text string, err error) error {
	return &regerr.Error{
		Type: regerr.User,
		Err:  errors.Wrapf(err, "invalid pattern %q", text),
		Help: `Patterns are globs (library/*), version constraints
(semver:~1.17) or regular expressions (regexp:^v[0-9]+$).
`,
	}
}

// Filter keeps the names at least one matcher accepts. With no
// matchers every name is kept.
func Filter(names []string, matchers ...Matcher) []string {
	if len(matchers) == 0 {
		return names
	}
	kept := []string{}
	for _, name := range names {
		for _, m := range matchers {
			if m.Match(name) {
				kept = append(kept, name)
				break
			}
		}
	}
	return kept
}

// NewerBySemver orders tags newest version first. Tags that are not
// versions sort after every version, among themselves lexically.
func NewerBySemver(lhs, rhs string) bool {
	lv, lerr := semver.NewVersion(lhs)
	rv, rerr := semver.NewVersion(rhs)
	switch {
	case lerr != nil && rerr != nil:
		return lhs < rhs
	case lerr != nil:
		return false
	case rerr != nil:
		return true
	}
	if cmp := lv.Compare(rv); cmp != 0 {
		return cmp > 0
	}
	// 1.10.0 ahead of 1.10
	return lhs > rhs
}

// SortTags returns a sorted copy of tags: newest version first, or
// lexical.
func SortTags(tags []string, bySemver bool) []string {
	sorted := append([]string(nil), tags...)
	if bySemver {
		sort.SliceStable(sorted, func(i, j int) bool {
			return NewerBySemver(sorted[i], sorted[j])
		})
	} else {
		sort.Strings(sorted)
	}
	return sorted
}

// PresentablePlatforms returns the platforms of an image worth
// showing, or nil if there is no image.
func PresentablePlatforms(info *registry.ImageInfo) []registry.Platform {
	if info == nil {
		return nil
	}
	return info.ValidPlatforms()
}
