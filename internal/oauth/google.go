package oauth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2/endpoints"

	"jobprep_backend/internal/apperrors"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type Google struct {
	*client
	userInfoURL string
}

func NewGoogle(cfg ProviderConfig, opts Options) *Google {
	userInfoURL := googleUserInfoURL
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}

	return &Google{
		client:      newClient(GoogleName, cfg, endpoints.Google, []string{"openid", "email", "profile"}, opts),
		userInfoURL: userInfoURL,
	}
}

// Exchange resolves the identity from the userinfo endpoint. When that call
// fails the id_token returned alongside the access token is used instead and
// Result.UserInfo stays nil.
func (g *Google) Exchange(ctx context.Context, code, verifier string) (*Result, error) {
	const op = "oauth.Google.Exchange"

	log := g.log.With(slog.String("op", op))

	token, err := g.exchangeCode(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	var info map[string]any
	if err := g.getJSON(ctx, token, g.userInfoURL, "application/json", &info); err != nil {
		log.Warn("userinfo unavailable, using id_token", slog.String("error", err.Error()))
		info = nil
	}

	if res, ok := resultFromClaims(info); ok {
		res.UserInfo = info
		return res, nil
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken != "" {
		claims, err := parseIDToken(rawIDToken)
		if err != nil {
			log.Warn("malformed id_token", slog.String("error", err.Error()))
		} else if res, ok := resultFromClaims(claims); ok {
			return res, nil
		}
	}

	return nil, apperrors.OAuthExchange("no identity returned by Google", fmt.Errorf("%s: userinfo and id_token missing", op))
}

// parseIDToken reads the claims without checking the signature. The token
// arrived over TLS in the token endpoint response, not from the browser.
func parseIDToken(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func resultFromClaims(claims map[string]any) (*Result, bool) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, false
	}

	res := &Result{ProviderUserID: sub}
	if email, _ := claims["email"].(string); email != "" && emailVerified(claims["email_verified"]) {
		res.Email = email
	}
	name, _ := claims["name"].(string)
	res.Name = name

	return res, true
}

// emailVerified accepts both encodings Google has used for the claim.
func emailVerified(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "true"
	default:
		return false
	}
}
