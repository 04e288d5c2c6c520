package auth

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/bnema/nap-alarm/internal/failure"
)

// authRequest holds the per-attempt values bound into the authorization URL
type authRequest struct {
	state    string
	verifier string
}

func newAuthRequest() authRequest {
	return authRequest{
		state:    uuid.NewString(),
		verifier: oauth2.GenerateVerifier(),
	}
}

func (r authRequest) url(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL(r.state, oauth2.S256ChallengeOption(r.verifier))
}

// codeFromRedirect extracts the authorization code from a pasted redirect URL
func codeFromRedirect(raw, wantState string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", failure.New("read redirect", failure.KindInvalidRedirect, "empty redirect url")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", failure.New("read redirect", failure.KindInvalidRedirect, "malformed redirect url").WithCause(err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", failure.New("read redirect", failure.KindInvalidRedirect, "redirect url must be absolute")
	}

	return codeFromQuery(u.Query(), wantState)
}

// codeFromQuery validates the callback parameters shared by both flows
func codeFromQuery(q url.Values, wantState string) (string, error) {
	if e := q.Get("error"); e != "" {
		msg := "provider returned " + e
		if desc := q.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		return "", failure.New("read redirect", failure.KindConsentDenied, msg)
	}

	if q.Get("state") != wantState {
		return "", failure.New("read redirect", failure.KindStateMismatch, "state parameter does not match the authorization request")
	}

	code := q.Get("code")
	if code == "" {
		return "", failure.New("read redirect", failure.KindInvalidRedirect, "redirect url carries no authorization code")
	}

	return code, nil
}
