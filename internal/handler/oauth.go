package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"jobprep_backend/internal/apperrors"
	"jobprep_backend/internal/auth"
	"jobprep_backend/internal/metrics"
	"jobprep_backend/internal/models"
	"jobprep_backend/internal/oauth"
)

const stateLength = 32

type oauthLoginResponse struct {
	Message       string         `json:"message"`
	Authenticated bool           `json:"authenticated"`
	AccessToken   string         `json:"access_token"`
	TokenType     string         `json:"token_type"`
	Provider      string         `json:"provider"`
	User          map[string]any `json:"user,omitempty"`
}

func stateKey(provider string) string    { return "oauth_state_" + provider }
func verifierKey(provider string) string { return "oauth_verifier_" + provider }

// GET /auth/{provider}
func (h *Handler) OAuthLogin(p oauth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.OAuthLogin"

		log := h.log.With(slog.String("op", op), slog.String("provider", p.Name()))

		state, err := auth.RandomString(stateLength)
		if err != nil {
			log.Error("failed to generate state", slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, "Internal server error")

			return
		}
		verifier := oauth2.GenerateVerifier()

		session := sessions.Default(c)
		session.Set(stateKey(p.Name()), state)
		session.Set(verifierKey(p.Name()), verifier)
		if err := session.Save(); err != nil {
			log.Error("failed to save session", slog.Any("error", err))

			newErrorResponse(c, http.StatusInternalServerError, "Internal server error")

			return
		}

		c.Redirect(http.StatusFound, p.AuthCodeURL(state, verifier))
	}
}

// GET /auth/{provider}/callback
func (h *Handler) OAuthCallback(p oauth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "handler.OAuthCallback"

		log := h.log.With(slog.String("op", op), slog.String("provider", p.Name()))

		session := sessions.Default(c)
		expected, _ := session.Get(stateKey(p.Name())).(string)
		verifier, _ := session.Get(verifierKey(p.Name())).(string)

		// State and verifier are single use.
		session.Delete(stateKey(p.Name()))
		session.Delete(verifierKey(p.Name()))
		if err := session.Save(); err != nil {
			log.Warn("failed to clear oauth session", slog.Any("error", err))
		}

		fail := func(err error) {
			log.Info("oauth callback rejected", slog.Any("error", err))
			h.countCallback(p.Name(), metrics.ResultError)
			respondError(c, log, err)
		}

		if providerErr := c.Query("error"); providerErr != "" {
			detail := providerErr
			if desc := c.Query("error_description"); desc != "" {
				detail += ": " + desc
			}
			fail(apperrors.OAuthExchange(detail, nil))

			return
		}

		code := c.Query("code")
		if code == "" {
			fail(apperrors.OAuthExchange("missing authorization code", nil))

			return
		}

		state := c.Query("state")
		if expected == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
			fail(apperrors.OAuthExchange("state mismatch", nil))

			return
		}

		res, err := p.Exchange(c.Request.Context(), code, verifier)
		if err != nil {
			fail(err)

			return
		}

		claims := map[string]any{
			"sub":          res.Subject(p.Name()),
			"provider":     p.Name(),
			"provider_uid": res.ProviderUserID,
		}
		if res.Email != "" {
			claims["email"] = res.Email
		}

		token, err := h.tokens.Issue(claims, 0)
		if err != nil {
			fail(err)

			return
		}

		h.countCallback(p.Name(), metrics.ResultSuccess)
		log.Info("oauth login", slog.String("provider_uid", res.ProviderUserID))

		c.JSON(http.StatusOK, oauthLoginResponse{
			Message:       "Login successful",
			Authenticated: true,
			AccessToken:   token,
			TokenType:     models.TokenTypeBearer,
			Provider:      p.Name(),
			User:          res.UserInfo,
		})
	}
}

func (h *Handler) countCallback(provider, result string) {
	if h.metrics != nil {
		h.metrics.OAuthCallbacks.WithLabelValues(provider, result).Inc()
	}
}
