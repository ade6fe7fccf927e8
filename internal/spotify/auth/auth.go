// Package auth handles the Spotify authorization-code flow with PKCE and
// keeps the resulting tokens fresh on disk.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	// SpotifyAuthURL is the Spotify authorization endpoint.
	SpotifyAuthURL = "https://accounts.spotify.com/authorize"

	// SpotifyTokenURL is the Spotify token endpoint.
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultRedirectURI is the default callback URI for the local server.
	DefaultRedirectURI = "http://127.0.0.1:8888/callback"
)

// DefaultScopes are the Spotify scopes needed to read and drive playback.
var DefaultScopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"user-read-private",
	"user-read-email",
}

// Endpoint is Spotify's OAuth2 endpoint. The public-client flow sends the
// client id in the form body.
var Endpoint = oauth2.Endpoint{
	AuthURL:   SpotifyAuthURL,
	TokenURL:  SpotifyTokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// NewConfig creates an OAuth2 configuration for a public client.
func NewConfig(clientID, redirectURI string) *oauth2.Config {
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}
	return &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      DefaultScopes,
		Endpoint:    Endpoint,
	}
}

// LoginRequest carries the per-login secrets of one authorization attempt.
type LoginRequest struct {
	State    string
	Verifier string
}

// NewLoginRequest generates a fresh state and PKCE verifier.
func NewLoginRequest() LoginRequest {
	return LoginRequest{
		State:    uuid.NewString(),
		Verifier: oauth2.GenerateVerifier(),
	}
}

// AuthURL returns the URL the user visits to grant access.
func (l LoginRequest) AuthURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL(l.State, oauth2.S256ChallengeOption(l.Verifier))
}

// Exchange trades the callback code for a token.
func (l LoginRequest) Exchange(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(l.Verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return tok, nil
}
