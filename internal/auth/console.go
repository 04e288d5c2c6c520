package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/bnema/nap-alarm/internal/failure"
	"github.com/bnema/nap-alarm/internal/logger"
)

// ConsoleFlow prints the authorization URL and reads the redirected URL back from the operator
type ConsoleFlow struct {
	In  io.Reader
	Out io.Writer
}

func (f *ConsoleFlow) Token(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	in, out := f.In, f.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	if file, ok := in.(*os.File); ok && !term.IsTerminal(int(file.Fd())) {
		logger.Warn("console authorization is reading from a non-interactive input", "name", file.Name())
	}

	req := newAuthRequest()

	fmt.Fprintln(out, "Visit this URL to authorize the app:", req.url(cfg))
	fmt.Fprint(out, "Enter the full redirected URL after you have authorized the app: ")

	line, err := readLine(ctx, in)
	if err != nil {
		return nil, err
	}

	code, err := codeFromRedirect(line, req.state)
	if err != nil {
		return nil, err
	}

	return exchange(ctx, cfg, code, oauth2.VerifierOption(req.verifier))
}

type lineResult struct {
	line string
	err  error
}

// readLine reads one line from r, giving up when ctx is done
func readLine(ctx context.Context, r io.Reader) (string, error) {
	results := make(chan lineResult, 1)

	go func() {
		line, err := bufio.NewReader(r).ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		results <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", failure.FromContext("read redirect", ctx.Err())
	case res := <-results:
		if res.err != nil {
			return "", failure.New("read redirect", failure.KindInput, "failed to read redirected url").WithCause(res.err)
		}
		return res.line, nil
	}
}
