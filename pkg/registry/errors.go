package registry

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	regerr "github.com/fluxcd/regbrowser/pkg/errors"
)

var (
	ErrAuthentication    = errors.New("registry refused the credentials")
	ErrNotFound          = errors.New("not found in registry")
	ErrConfiguration     = errors.New("registry client is not configured")
	ErrMalformedResponse = errors.New("malformed registry response")
)

// StatusError is a non-2xx response other than 401 and 404.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: registry returned %s", e.Method, e.Endpoint, e.Status)
}

func statusError(method, endpoint string, res *http.Response) error {
	switch res.StatusCode {
	case http.StatusUnauthorized:
		return &regerr.Error{
			Type: regerr.User,
			Err:  errors.Wrapf(ErrAuthentication, "%s %s", method, endpoint),
			Help: `The registry answered 401 Unauthorized.

Check the username and password, and that the account may read
this registry. Registries that only accept bearer tokens are not
supported.
`,
		}
	case http.StatusNotFound:
		return &regerr.Error{
			Type: regerr.Missing,
			Err:  errors.Wrapf(ErrNotFound, "%s %s", method, endpoint),
			Help: `The registry has no such repository, tag or blob.

It may have been deleted since it was listed; refreshing the
listing will show what is there now.
`,
		}
	}
	return &regerr.Error{
		Type: regerr.Server,
		Err: &StatusError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: res.StatusCode,
			Status:     res.Status,
		},
		Help: fmt.Sprintf(`The registry answered %s.

This usually means the registry is unavailable or overloaded;
trying again later may work.
`, res.Status),
	}
}

func configurationError(err error) error {
	return &regerr.Error{
		Type: regerr.User,
		Err:  errors.Wrap(ErrConfiguration, err.Error()),
		Help: `No usable registry URL has been configured.

Connect to a registry first, e.g.

    regbrowser connect https://registry.example.com -u me
`,
	}
}

func malformedError(err error) error {
	return &regerr.Error{
		Type: regerr.Server,
		Err:  errors.Wrap(ErrMalformedResponse, err.Error()),
		Help: `The registry sent something that could not be understood
as a registry API response.
`,
	}
}

func IsAuthentication(err error) bool {
	return errors.Is(err, ErrAuthentication)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// StatusCode digs the HTTP status out of a registry error, or
// returns 0 if there isn't one.
func StatusCode(err error) int {
	switch {
	case IsAuthentication(err):
		return http.StatusUnauthorized
	case IsNotFound(err):
		return http.StatusNotFound
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

func invalidDigestError(d string, err error) error {
	return &regerr.Error{
		Type: regerr.User,
		Err:  errors.Wrapf(err, "invalid digest %q", d),
		Help: `Blobs and manifests are deleted or fetched by digest, which looks
like sha256:<64 hex characters>.
`,
	}
}
