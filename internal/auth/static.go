package auth

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/bnema/nap-alarm/internal/failure"
)

// StaticFlow hands back a token obtained elsewhere, skipping all interaction
type StaticFlow struct {
	AccessToken string
}

func (f *StaticFlow) Token(_ context.Context, _ *oauth2.Config) (*oauth2.Token, error) {
	if f.AccessToken == "" {
		return nil, failure.New("static token", failure.KindInput, "no access token supplied")
	}
	return &oauth2.Token{
		AccessToken: f.AccessToken,
		TokenType:   "Bearer",
	}, nil
}
