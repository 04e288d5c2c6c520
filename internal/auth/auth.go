package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/fitbit"
	"golang.org/x/oauth2/google"

	"github.com/bnema/nap-alarm/internal/failure"
	"github.com/bnema/nap-alarm/internal/logger"
)

const (
	ProviderFitbit = "fitbit"
	ProviderGoogle = "google"
)

// Flow obtains a token for cfg. Implementations decide how the authorization code reaches the program.
type Flow interface {
	Token(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// Result is an authorized credential for one provider, kept in memory only
type Result struct {
	Provider string
	Token    *oauth2.Token
	Config   *oauth2.Config
}

// HTTPClient returns a client that attaches the bearer token to every request
func (r *Result) HTTPClient(ctx context.Context) *http.Client {
	return r.Config.Client(ctx, r.Token)
}

// Authenticator runs a Flow against a provider's OAuth2 configuration
type Authenticator struct {
	Provider string
	Config   *oauth2.Config
	Flow     Flow
	// Timeout bounds the whole flow, including human interaction. Zero means no bound.
	Timeout time.Duration
}

// NewFitbitConfig builds the OAuth2 configuration for the Fitbit Web API
func NewFitbitConfig(clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     fitbit.Endpoint,
	}
}

// NewGoogleConfig builds the OAuth2 configuration for Google Calendar. The redirect URL is set by the flow.
func NewGoogleConfig(clientID, clientSecret string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		Endpoint:     google.Endpoint,
	}
}

// Authenticate runs the flow once. There is no retry: every failure is returned with its kind.
func (a *Authenticator) Authenticate(ctx context.Context) (*Result, error) {
	op := "authenticate " + a.Provider

	if a.Config == nil || a.Flow == nil {
		return nil, failure.New(op, failure.KindConfig, "authenticator is not configured")
	}

	if a.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logger.Debug("authentication started", "provider", a.Provider, "flow", flowName(a.Flow))

	token, err := a.Flow.Token(ctx, a.Config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && failure.KindOf(err) == failure.KindUnknown {
			err = failure.FromContext(op, ctxErr).WithCause(err)
		}
		var fe *failure.Error
		if errors.As(err, &fe) {
			fe.Op = op
		} else {
			err = failure.New(op, failure.KindUnknown, "authorization flow failed").WithCause(err)
		}
		logger.Warn("authentication failed", "provider", a.Provider, "error", err)
		return nil, err
	}

	logger.Info("authentication succeeded",
		"provider", a.Provider,
		"duration", time.Since(startTime).String(),
		"has_refresh_token", token.RefreshToken != "",
	)

	return &Result{
		Provider: a.Provider,
		Token:    token,
		Config:   a.Config,
	}, nil
}

func flowName(f Flow) string {
	switch f.(type) {
	case *ConsoleFlow:
		return "console"
	case *LocalCallbackFlow:
		return "local_callback"
	case *StaticFlow:
		return "static"
	default:
		return "custom"
	}
}

// exchange trades an authorization code for a token and classifies the failure
func exchange(ctx context.Context, cfg *oauth2.Config, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	token, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, failure.FromContext("exchange", ctxErr).WithCause(err)
		}
		msg := "token endpoint rejected the authorization code"
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			msg = "token endpoint returned " + re.ErrorCode
		}
		return nil, failure.New("exchange", failure.KindExchange, msg).WithCause(err)
	}
	return token, nil
}
