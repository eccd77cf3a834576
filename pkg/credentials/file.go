package credentials

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/fluxcd/regbrowser/pkg/registry"
)

// Filename is the credentials file created in a config dir.
const Filename = "credentials.json"

// FileProvider keeps credentials as plain JSON in a file only the
// user can read.
type FileProvider struct {
	Path string
}

func (p FileProvider) Load() (*registry.Credentials, error) {
	bs, err := ioutil.ReadFile(p.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading saved credentials")
	}
	var creds registry.Credentials
	if err := json.Unmarshal(bs, &creds); err != nil {
		return nil, errors.Wrapf(err, "parsing saved credentials in %s", p.Path)
	}
	return &creds, nil
}

func (p FileProvider) Save(registryURL, username, password string) (Method, error) {
	bs, err := json.MarshalIndent(registry.Credentials{
		RegistryURL: registryURL,
		Username:    username,
		Password:    password,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0700); err != nil {
		return "", errors.Wrap(err, "creating config directory")
	}
	tmp := p.Path + ".tmp"
	if err := ioutil.WriteFile(tmp, bs, 0600); err != nil {
		return "", errors.Wrap(err, "writing credentials")
	}
	if err := os.Rename(tmp, p.Path); err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, "writing credentials")
	}
	return MethodFile, nil
}

func (p FileProvider) Clear() error {
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing saved credentials")
	}
	return nil
}

func (p FileProvider) Describe() Description {
	return Description{
		Method:      MethodFile,
		Description: fmt.Sprintf("saved unencrypted in %s, readable only by you", p.Path),
		Secure:      false,
	}
}
