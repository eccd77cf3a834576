package credentials

import (
	"encoding/base64"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	user string = "user"
	pass string = "pass"
	tmpl string = `
    {
        "auths": {
            %q: {"auth": %q}
        }
    }`
	okCreds string = base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
)

func TestParseDockerConfig_Host(t *testing.T) {
	for _, v := range []struct {
		host  string
		key   string
		error bool
	}{
		{host: "host", key: "host"},
		{host: "localhost:5000/v2/", key: "localhost:5000"},
		{host: "192.168.99.100:5000", key: "192.168.99.100:5000"},
		{host: "https://my.domain.name:5000/v2", key: "my.domain.name:5000"},
		{host: "https://gcr.io/v1/", key: "gcr.io"},
		{host: "gcr.io/v1", key: "gcr.io"},
		{host: "", error: true},
		{host: "https://", error: true},
		{host: "^#invalid.io/v1/", error: true},
		{host: "/var/user", error: true},
	} {
		t.Run(v.host, func(t *testing.T) {
			auths, err := ParseDockerConfig([]byte(fmt.Sprintf(tmpl, v.host, okCreds)))
			if v.error {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user, auths[v.key].Username)
			assert.Equal(t, pass, auths[v.key].Password)
		})
	}
}

func TestParseDockerConfig_k8s(t *testing.T) {
	k8sCreds := []byte(`{"localhost:5000":{"username":"testuser","password":"testpassword","email":"foo@bar.com","auth":"dGVzdHVzZXI6dGVzdHBhc3N3b3Jk"}}`)
	auths, err := ParseDockerConfig(k8sCreds)
	require.NoError(t, err)
	assert.Len(t, auths, 1)
	assert.Equal(t, "testuser", auths["localhost:5000"].Username)
	assert.Equal(t, "testpassword", auths["localhost:5000"].Password)
}

func TestParseDockerConfig_BadAuth(t *testing.T) {
	_, err := ParseDockerConfig([]byte(fmt.Sprintf(tmpl, "host", "!!!")))
	assert.Error(t, err)
	_, err = ParseDockerConfig([]byte(fmt.Sprintf(tmpl, "host", base64.StdEncoding.EncodeToString([]byte("nocolon")))))
	assert.Error(t, err)
}

func TestFromDockerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(fmt.Sprintf(tmpl, "https://registry.example.com/v2/", okCreds)), 0600))

	creds, err := FromDockerConfig(path, "registry.example.com")
	require.NoError(t, err)
	assert.Equal(t, "registry.example.com", creds.RegistryURL)
	assert.Equal(t, user, creds.Username)
	assert.Equal(t, pass, creds.Password)

	creds, err = FromDockerConfig(path, "https://other.example.com")
	require.NoError(t, err)
	assert.Equal(t, "", creds.Username)

	_, err = FromDockerConfig(filepath.Join(t.TempDir(), "missing.json"), "registry.example.com")
	assert.Error(t, err)
}
