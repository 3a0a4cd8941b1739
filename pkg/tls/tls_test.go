package tls

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfSignedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, GenerateSelfSigned(certFile, keyFile, "site.local", "10.0.0.5"))

	serverCfg, err := ServerConfig(certFile, keyFile)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = serverCfg
	srv.StartTLS()
	t.Cleanup(srv.Close)

	client, err := HTTPClient(certFile, false, 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, client)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// the default pool does not trust the generated certificate
	_, err = http.DefaultClient.Get(srv.URL)
	assert.Error(t, err)
}

func TestHTTPClientDefaults(t *testing.T) {
	client, err := HTTPClient("", false, time.Second)
	require.NoError(t, err)
	assert.Nil(t, client)

	_, err = HTTPClient(filepath.Join(t.TempDir(), "missing.pem"), false, time.Second)
	assert.Error(t, err)

	_, err = ServerConfig("missing.pem", "missing-key.pem")
	assert.Error(t, err)
}
