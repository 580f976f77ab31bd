package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/oauth2/endpoints"

	"jobprep_backend/internal/apperrors"
)

const (
	githubAPIURL = "https://api.github.com"
	githubAccept = "application/vnd.github+json"
)

type GitHub struct {
	*client
	apiURL string
}

func NewGitHub(cfg ProviderConfig, opts Options) *GitHub {
	apiURL := githubAPIURL
	if cfg.APIURL != "" {
		apiURL = strings.TrimRight(cfg.APIURL, "/")
	}

	return &GitHub{
		client: newClient(GitHubName, cfg, endpoints.GitHub, []string{"user:email"}, opts),
		apiURL: apiURL,
	}
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) Exchange(ctx context.Context, code, verifier string) (*Result, error) {
	const op = "oauth.GitHub.Exchange"

	log := g.log.With(slog.String("op", op))

	token, err := g.exchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	var user githubUser
	if err := g.getJSON(ctx, token, g.apiURL+"/user", githubAccept, &user); err != nil {
		return nil, apperrors.OAuthExchange("failed to fetch GitHub profile", fmt.Errorf("%s: %w", op, err))
	}
	if user.ID == 0 {
		return nil, apperrors.OAuthExchange("GitHub profile has no id", nil)
	}

	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := g.getJSON(ctx, token, g.apiURL+"/user/emails", githubAccept, &emails); err != nil {
			log.Warn("failed to fetch GitHub emails", slog.String("error", err.Error()))
		} else {
			email = pickGitHubEmail(emails)
		}
	}

	return &Result{
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Email:          email,
		Name:           firstNonEmpty(user.Name, user.Login),
	}, nil
}

// pickGitHubEmail prefers the primary verified address and never returns an
// unverified one.
func pickGitHubEmail(emails []githubEmail) string {
	var fallback string
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
