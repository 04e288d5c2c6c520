package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestUserAgentIsSet(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	resp, err := NewHTTPClient().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, userAgent, got)
}

func TestCrossHostRedirectIsNotFollowed(t *testing.T) {
	var hits int
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer other.Close()

	// 127.0.0.1 and localhost are different hosts as far as the client is concerned
	_, port, err := net.SplitHostPort(other.Listener.Addr().String())
	require.NoError(t, err)
	target := "http://localhost:" + port
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusFound)
	}))
	defer srv.Close()

	resp, err := NewHTTPClient().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, 0, hits)
}

func TestWithClient(t *testing.T) {
	client := NewHTTPClient()
	ctx := WithClient(context.Background(), client)
	assert.Same(t, client, ctx.Value(oauth2.HTTPClient))
}
