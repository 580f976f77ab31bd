// Package oauth implements the authorization code flow against GitHub and
// Google, with PKCE, a bounded exchange and a per-provider circuit breaker.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"jobprep_backend/internal/apperrors"
)

const (
	GitHubName = "github"
	GoogleName = "google"

	defaultTimeout = 10 * time.Second
	maxProfileBody = 1 << 20
)

// Provider is one external identity provider.
type Provider interface {
	Name() string
	// AuthCodeURL builds the authorize redirect carrying state and the S256
	// challenge for verifier.
	AuthCodeURL(state, verifier string) string
	// Exchange redeems code and resolves the caller's identity.
	Exchange(ctx context.Context, code, verifier string) (*Result, error)
}

// ProviderConfig holds client credentials. The URL fields override the
// provider's public endpoints and are left empty in production.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL     string
	TokenURL    string
	APIURL      string
	UserInfoURL string
}

type Options struct {
	Timeout   time.Duration
	Logger    *slog.Logger
	Transport http.RoundTripper
}

// Result is the identity established by a successful callback.
type Result struct {
	ProviderUserID string
	Email          string
	Name           string
	// UserInfo is the provider's raw profile when it was fetched.
	UserInfo map[string]any
}

// Subject is the local token subject "<provider>:<provider user id>". It never
// collides with a local account, whose subject is its email.
func (r *Result) Subject(provider string) string {
	return provider + ":" + r.ProviderUserID
}

type client struct {
	name     string
	conf     *oauth2.Config
	exchange *http.Client
	api      *http.Client
	log      *slog.Logger
}

func newClient(name string, cfg ProviderConfig, endpoint oauth2.Endpoint, scopes []string, opts Options) *client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// Auto-detection retries a rejected exchange with the other style, which
	// would post the single-use code twice.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	log := opts.Logger.With(slog.String("provider", name))
	breaker := newBreaker("oauth-"+name, log)

	return &client{
		name: name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		exchange: &http.Client{
			Timeout: opts.Timeout,
			Transport: &breakerTransport{
				next:    &dialRetryTransport{next: opts.Transport, log: log},
				breaker: breaker,
			},
		},
		api: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &breakerTransport{next: opts.Transport, breaker: breaker},
		},
		log: log,
	}
}

func (c *client) Name() string {
	return c.name
}

func (c *client) AuthCodeURL(state, verifier string) string {
	return c.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func (c *client) exchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	const op = "oauth.exchangeCode"

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.exchange)

	token, err := c.conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, apperrors.OAuthExchange(exchangeDetail(err), fmt.Errorf("%s: %w", op, err))
	}

	return token, nil
}

func exchangeDetail(err error) string {
	if isBreakerOpen(err) {
		return "provider temporarily unavailable"
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode != "" {
		if retrieveErr.ErrorDescription != "" {
			return retrieveErr.ErrorCode + ": " + retrieveErr.ErrorDescription
		}
		return retrieveErr.ErrorCode
	}

	return "token exchange failed"
}

// getJSON fetches url with the provider access token and decodes the body
// into dst.
func (c *client) getJSON(ctx context.Context, token *oauth2.Token, url string, accept string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", accept)
	token.SetAuthHeader(req)

	resp, err := c.api.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(dst)
}
