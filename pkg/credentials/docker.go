package credentials

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/fluxcd/regbrowser/pkg/registry"
)

func parseAuth(auth string) (username, password string, err error) {
	decodedAuth, err := base64.StdEncoding.DecodeString(auth)
	if err != nil {
		return "", "", err
	}
	authParts := strings.SplitN(string(decodedAuth), ":", 2)
	if len(authParts) != 2 {
		return "", "", fmt.Errorf("decoded credential has wrong number of fields (expected 2, got %d)", len(authParts))
	}
	return authParts[0], authParts[1], nil
}

// normaliseHost strips a registry address down to host[:port].
func normaliseHost(host string) (string, error) {
	if host == "http://" || host == "https://" {
		return "", errors.New("Empty registry auth url")
	}
	// Some users were passing in credentials in the form of
	// http://docker.io and http://docker.io/v1/, etc.
	// So strip everything down to the host.
	// Also, the registry might be local and on a different port.
	// So we need to check for that because url.Parse won't parse the ip:port format very well.
	u, err := url.Parse(host)

	// if anything went wrong try to prepend https://
	if err != nil || u.Host == "" {
		u, err = url.Parse(fmt.Sprintf("https://%s/", host))
		if err != nil {
			return "", err
		}
	}

	if u.Host == "" { // If host is still empty the url must be broken.
		return "", errors.New("Invalid registry auth url. Must be a valid http address (e.g. https://gcr.io/v1/)")
	}
	return u.Host, nil
}

// ParseDockerConfig reads the auths in a docker config.json, or in the
// bare map used by Kubernetes .dockercfg secrets, keyed by host.
func ParseDockerConfig(b []byte) (map[string]registry.Credentials, error) {
	var config struct {
		Auths map[string]struct {
			Auth string
		}
	}
	if err := json.Unmarshal(b, &config); err != nil {
		return nil, err
	}
	// If it's in k8s format, it won't have the surrounding "Auth". Try that too.
	if len(config.Auths) == 0 {
		if err := json.Unmarshal(b, &config.Auths); err != nil {
			return nil, err
		}
	}
	m := map[string]registry.Credentials{}
	for host, entry := range config.Auths {
		username, password, err := parseAuth(entry.Auth)
		if err != nil {
			return nil, errors.Wrapf(err, "auth for %s", host)
		}
		host, err = normaliseHost(host)
		if err != nil {
			return nil, err
		}
		m[host] = registry.Credentials{Username: username, Password: password}
	}
	return m, nil
}

// FromDockerConfig finds the credentials for registryURL in the docker
// config file at path. The result has the given registryURL, and no
// username or password if the file has nothing for that host.
func FromDockerConfig(path, registryURL string) (registry.Credentials, error) {
	creds := registry.Credentials{RegistryURL: registryURL}
	base, err := creds.BaseURL()
	if err != nil {
		return creds, err
	}
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return creds, errors.Wrap(err, "reading docker config")
	}
	auths, err := ParseDockerConfig(bs)
	if err != nil {
		return creds, errors.Wrapf(err, "parsing docker config %s", path)
	}
	if found, ok := auths[base.Host]; ok {
		creds.Username, creds.Password = found.Username, found.Password
	}
	return creds, nil
}
