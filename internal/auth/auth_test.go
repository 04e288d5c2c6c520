package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/bnema/nap-alarm/internal/failure"
)

const goodCode = "good-code"

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")

		if r.PostForm.Get("code") != goodCode {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, `{"error":"invalid_grant","error_description":"bad code"}`)
			return
		}
		assert.NotEmpty(t, r.PostForm.Get("code_verifier"))

		_, _ = fmt.Fprint(w, `{"access_token":"test-access","token_type":"Bearer","expires_in":3600,"refresh_token":"test-refresh"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://127.0.0.1:8080/",
		Scopes:       []string{"sleep"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://provider.example/oauth2/authorize",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// consoleSession wires a ConsoleFlow to pipes and answers the prompt with reply(state)
func consoleSession(t *testing.T, reply func(authURL *url.URL) string) *ConsoleFlow {
	t.Helper()

	outR, outW := io.Pipe()
	inR, inW := io.Pipe()
	t.Cleanup(func() {
		_ = outW.Close()
		_ = inW.Close()
	})

	go func() {
		br := bufio.NewReader(outR)
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		go func() { _, _ = io.Copy(io.Discard, br) }()

		authURL, err := url.Parse(strings.TrimSpace(line[strings.Index(line, "http"):]))
		if err != nil {
			return
		}
		if answer := reply(authURL); answer != "" {
			_, _ = io.WriteString(inW, answer+"\n")
		}
	}()

	return &ConsoleFlow{In: inR, Out: outW}
}

func TestConsoleFlowExchangesCode(t *testing.T) {
	srv := tokenServer(t)
	cfg := testConfig(srv.URL)

	var seen url.Values
	flow := consoleSession(t, func(u *url.URL) string {
		seen = u.Query()
		return "http://127.0.0.1:8080/?code=" + goodCode + "&state=" + u.Query().Get("state") + "#_=_"
	})

	token, err := flow.Token(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "test-access", token.AccessToken)

	assert.Equal(t, "client-id", seen.Get("client_id"))
	assert.Equal(t, "sleep", seen.Get("scope"))
	assert.Equal(t, "S256", seen.Get("code_challenge_method"))
	assert.Equal(t, "http://127.0.0.1:8080/", seen.Get("redirect_uri"))
}

func TestConsoleFlowFailures(t *testing.T) {
	srv := tokenServer(t)

	tests := []struct {
		name  string
		reply func(u *url.URL) string
		kind  failure.Kind
	}{
		{
			name:  "state mismatch",
			reply: func(*url.URL) string { return "http://127.0.0.1:8080/?code=" + goodCode + "&state=forged" },
			kind:  failure.KindStateMismatch,
		},
		{
			name:  "consent denied",
			reply: func(u *url.URL) string { return "http://127.0.0.1:8080/?error=access_denied&state=" + u.Query().Get("state") },
			kind:  failure.KindConsentDenied,
		},
		{
			name:  "not a url",
			reply: func(*url.URL) string { return "just some text" },
			kind:  failure.KindInvalidRedirect,
		},
		{
			name:  "missing code",
			reply: func(u *url.URL) string { return "http://127.0.0.1:8080/?state=" + u.Query().Get("state") },
			kind:  failure.KindInvalidRedirect,
		},
		{
			name:  "rejected code",
			reply: func(u *url.URL) string { return "http://127.0.0.1:8080/?code=bad&state=" + u.Query().Get("state") },
			kind:  failure.KindExchange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := consoleSession(t, tt.reply)

			token, err := flow.Token(context.Background(), testConfig(srv.URL))
			require.Error(t, err)
			assert.Nil(t, token)
			assert.Equal(t, tt.kind, failure.KindOf(err), err.Error())
		})
	}
}

func TestAuthenticateTimeout(t *testing.T) {
	srv := tokenServer(t)

	flow := consoleSession(t, func(*url.URL) string { return "" })
	a := &Authenticator{
		Provider: ProviderFitbit,
		Config:   testConfig(srv.URL),
		Flow:     flow,
		Timeout:  50 * time.Millisecond,
	}

	res, err := a.Authenticate(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, failure.KindTimeout, failure.KindOf(err))
	assert.Contains(t, err.Error(), "authenticate fitbit")
}

func TestAuthenticateCanceled(t *testing.T) {
	flow := consoleSession(t, func(*url.URL) string { return "" })
	a := &Authenticator{Provider: ProviderFitbit, Config: testConfig("http://unused"), Flow: flow}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Authenticate(ctx)
	require.Error(t, err)
	assert.Equal(t, failure.KindCanceled, failure.KindOf(err))
}

func TestAuthenticateStatic(t *testing.T) {
	a := &Authenticator{
		Provider: ProviderGoogle,
		Config:   NewGoogleConfig("id", "secret", []string{"scope"}),
		Flow:     &StaticFlow{AccessToken: "pre-supplied"},
	}

	res, err := a.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ProviderGoogle, res.Provider)
	assert.Equal(t, "pre-supplied", res.Token.AccessToken)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pre-supplied", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	resp, err := res.HTTPClient(context.Background()).Get(api.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAuthenticateStaticEmpty(t *testing.T) {
	a := &Authenticator{
		Provider: ProviderFitbit,
		Config:   NewFitbitConfig("id", "secret", "http://127.0.0.1:8080/", nil),
		Flow:     &StaticFlow{},
	}

	_, err := a.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.KindInput, failure.KindOf(err))
}

func TestAuthenticateNotConfigured(t *testing.T) {
	_, err := (&Authenticator{Provider: ProviderFitbit}).Authenticate(context.Background())
	assert.Equal(t, failure.KindConfig, failure.KindOf(err))
}

// browserFunc simulates the user's browser following the consent URL back to the listener
func browserFunc(t *testing.T, query func(state string) string) func(string) error {
	return func(consent string) error {
		u, err := url.Parse(consent)
		if err != nil {
			return err
		}
		redirect := u.Query().Get("redirect_uri")
		state := u.Query().Get("state")

		go func() {
			resp, err := http.Get(redirect + "favicon.ico")
			if err == nil {
				assert.Equal(t, http.StatusNotFound, resp.StatusCode)
				_ = resp.Body.Close()
			}
			resp, err = http.Get(redirect + "?" + query(state))
			if err == nil {
				_ = resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestLocalCallbackFlow(t *testing.T) {
	srv := tokenServer(t)

	flow := &LocalCallbackFlow{
		Out: io.Discard,
		OpenBrowser: browserFunc(t, func(state string) string {
			return "code=" + goodCode + "&state=" + state
		}),
	}

	token, err := flow.Token(context.Background(), testConfig(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "test-access", token.AccessToken)
	assert.Equal(t, "test-refresh", token.RefreshToken)
}

func TestLocalCallbackFlowDenied(t *testing.T) {
	srv := tokenServer(t)

	flow := &LocalCallbackFlow{
		Out: io.Discard,
		OpenBrowser: browserFunc(t, func(state string) string {
			return "error=access_denied&state=" + state
		}),
	}

	_, err := flow.Token(context.Background(), testConfig(srv.URL))
	require.Error(t, err)
	assert.Equal(t, failure.KindConsentDenied, failure.KindOf(err))
}

func TestLocalCallbackFlowTimeout(t *testing.T) {
	a := &Authenticator{
		Provider: ProviderGoogle,
		Config:   testConfig("http://unused"),
		Flow:     &LocalCallbackFlow{Out: io.Discard},
		Timeout:  50 * time.Millisecond,
	}

	_, err := a.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, failure.KindTimeout, failure.KindOf(err))
}

func TestCodeFromRedirect(t *testing.T) {
	code, err := codeFromRedirect("  http://127.0.0.1:8080/?code=abc&state=s1 \n", "s1")
	require.NoError(t, err)
	assert.Equal(t, "abc", code)

	_, err = codeFromRedirect("", "s1")
	assert.Equal(t, failure.KindInvalidRedirect, failure.KindOf(err))

	_, err = codeFromRedirect("/?code=abc&state=s1", "s1")
	assert.Equal(t, failure.KindInvalidRedirect, failure.KindOf(err))
}
