package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/bnema/nap-alarm/internal/failure"
	"github.com/bnema/nap-alarm/internal/logger"
)

const (
	defaultCallbackHost = "127.0.0.1"
	shutdownTimeout     = 5 * time.Second
)

// LocalCallbackFlow receives the authorization code on a short-lived loopback listener
type LocalCallbackFlow struct {
	// Host to listen on; the port is always assigned by the OS
	Host string
	Out  io.Writer
	// OpenBrowser is called with the consent URL. Nil means print only.
	OpenBrowser func(url string) error
}

type callbackResult struct {
	code string
	err  error
}

func (f *LocalCallbackFlow) Token(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	host := f.Host
	if host == "" {
		host = defaultCallbackHost
	}
	out := f.Out
	if out == nil {
		out = os.Stdout
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, failure.New("start callback listener", failure.KindTransport, "failed to listen on "+host).WithCause(err)
	}

	// The redirect target is bound to this listener only
	local := *cfg
	local.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	req := newAuthRequest()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("code") == "" && q.Get("error") == "" && q.Get("state") == "" {
			http.NotFound(w, r)
			return
		}

		code, err := codeFromQuery(q, req.state)
		if err != nil {
			http.Error(w, "Authorization failed. You can close this window.", http.StatusBadRequest)
		} else {
			_, _ = fmt.Fprint(w, "Authorization successful! You can close this window.")
		}

		select {
		case results <- callbackResult{code: code, err: err}:
		default:
		}
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("callback listener stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to stop callback listener", "error", err)
		}
	}()

	authURL := req.url(&local)
	logger.Debug("callback listener ready", "redirect_url", local.RedirectURL)

	fmt.Fprintf(out, "\nIf your browser doesn't open, visit this URL to authorize calendar access:\n%s\n\n", authURL)
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			logger.Warn("failed to open browser", "error", err)
		}
	}

	select {
	case <-ctx.Done():
		return nil, failure.FromContext("wait for callback", ctx.Err())
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return exchange(ctx, &local, res.code, oauth2.VerifierOption(req.verifier))
	}
}
