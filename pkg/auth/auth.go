// Package auth produces the Authorization header for API requests, either
// from a static access token or by exchanging an OAuth refresh token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// DefaultTokenURL is LinkedIn's OAuth 2.0 token endpoint.
const DefaultTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"

// ErrMissingCredential is returned when the configured method lacks a secret.
var ErrMissingCredential = errors.New("missing credential")

// Method selects how the access token is obtained.
type Method string

const (
	// MethodToken uses a stored access token as-is.
	MethodToken Method = "token"

	// MethodOAuth refreshes an access token from a refresh token.
	MethodOAuth Method = "oauth"
)

// Config holds credentials.
type Config struct {
	Method       Method
	AccessToken  string
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
}

// Validate reports the first missing credential for the configured method.
func (c Config) Validate() error {
	switch c.Method {
	case MethodToken, "":
		if c.AccessToken == "" {
			return fmt.Errorf("%w: access_token is required for token authentication", ErrMissingCredential)
		}
	case MethodOAuth:
		if c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("%w: client_id and client_secret are required for oauth authentication", ErrMissingCredential)
		}
		if c.RefreshToken == "" {
			return fmt.Errorf("%w: refresh_token is required for oauth authentication", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("unknown authentication method %q (want token or oauth)", c.Method)
	}
	return nil
}

// Provider hands out request headers carrying a valid bearer token.
type Provider struct {
	source oauth2.TokenSource
}

// New creates a provider. For oauth, ctx and httpClient (optional) are used
// for every refresh exchange, so ctx should live as long as the provider.
func New(ctx context.Context, cfg Config, httpClient *http.Client) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Method == MethodOAuth {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		conf := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		return &Provider{source: conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})}, nil
	}

	return &Provider{source: oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.AccessToken,
		TokenType:   "Bearer",
	})}, nil
}

// Token returns the current access token, refreshing it when needed.
func (p *Provider) Token() (*oauth2.Token, error) {
	tok, err := p.source.Token()
	if err != nil {
		return nil, fmt.Errorf("obtain access token: %w", err)
	}
	return tok, nil
}

// Headers returns request headers with Authorization set.
func (p *Provider) Headers() (http.Header, error) {
	tok, err := p.Token()
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return h, nil
}
