package registry

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Credentials for a registry. An empty Username or Password means
// that part is absent; the registry is then accessed anonymously.
type Credentials struct {
	RegistryURL string `json:"registryUrl"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

func (c Credentials) String() string {
	if (Credentials{}) == c {
		return "<zero creds>"
	}
	if c.Username == "" {
		return fmt.Sprintf("<anonymous creds for %s>", c.RegistryURL)
	}
	return fmt.Sprintf("<registry creds for %s@%s>", c.Username, c.RegistryURL)
}

// AuthHeader returns the value for an Authorization header, if the
// credentials have both a username and a password.
func (c Credentials) AuthHeader() (string, bool) {
	if c.Username == "" || c.Password == "" {
		return "", false
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password)), true
}

// BaseURL normalises the registry URL to scheme://host[:port], with
// https assumed when no scheme is given. Some users pass things like
// https://my.registry/v2/, so the path is dropped.
func (c Credentials) BaseURL() (*url.URL, error) {
	raw := strings.TrimSpace(c.RegistryURL)
	if raw == "" {
		return nil, configurationError(errors.New("no registry URL given"))
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, configurationError(errors.Wrapf(err, "parsing registry URL %q", c.RegistryURL))
	}
	if u.Host == "" {
		return nil, configurationError(fmt.Errorf("registry URL %q has no host", c.RegistryURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, configurationError(fmt.Errorf("registry URL %q must be http or https", c.RegistryURL))
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}
