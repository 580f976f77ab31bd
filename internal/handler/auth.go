package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobprep_backend/internal/apperrors"
	"jobprep_backend/internal/metrics"
	"jobprep_backend/internal/service"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone" binding:"omitempty,max=32"`
	Address  string `json:"address" binding:"omitempty,max=255"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Message       string `json:"message"`
	Authenticated bool   `json:"authenticated"`
	AccessToken   string `json:"access_token"`
	TokenType     string `json:"token_type"`
}

// POST /auth/signup
func (h *Handler) Signup(c *gin.Context) {
	const op = "handler.Signup"

	log := h.log.With(slog.String("op", op))

	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("invalid signup request", slog.Any("error", err))
		h.countSignup(metrics.ResultInvalid)

		newErrorResponse(c, http.StatusBadRequest, bindingDetail(err))

		return
	}

	_, err := h.serviceLayer.Signup(c.Request.Context(), service.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		h.countSignup(signupResult(err))
		respondError(c, log, err)

		return
	}

	h.countSignup(metrics.ResultSuccess)

	c.JSON(http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	const op = "handler.Login"

	log := h.log.With(slog.String("op", op))

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug("invalid login request", slog.Any("error", err))
		h.countLogin(metrics.ResultInvalid)

		newErrorResponse(c, http.StatusBadRequest, bindingDetail(err))

		return
	}

	res, err := h.serviceLayer.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.countLogin(loginResult(err))
		respondError(c, log, err)

		return
	}

	h.countLogin(metrics.ResultSuccess)

	c.JSON(http.StatusOK, loginResponse{
		Message:       "Login successful",
		Authenticated: true,
		AccessToken:   res.AccessToken,
		TokenType:     res.TokenType,
	})
}

type externalProfile struct {
	Subject  string `json:"subject"`
	Provider string `json:"provider"`
	Email    string `json:"email,omitempty"`
}

// GET /auth/me
func (h *Handler) Me(c *gin.Context) {
	const op = "handler.Me"

	log := h.log.With(slog.String("op", op))

	subject := c.GetString(ctxSubject)
	claims, _ := c.Get(ctxClaims)
	if m, ok := claims.(map[string]any); ok {
		if provider, _ := m["provider"].(string); provider != "" {
			email, _ := m["email"].(string)
			c.JSON(http.StatusOK, externalProfile{Subject: subject, Provider: provider, Email: email})

			return
		}
	}

	user, err := h.serviceLayer.Profile(c.Request.Context(), subject)
	if err != nil {
		respondError(c, log, err)

		return
	}

	c.JSON(http.StatusOK, user)
}

func signupResult(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrDuplicateAccount):
		return metrics.ResultDuplicate
	case errors.Is(err, apperrors.ErrValidation):
		return metrics.ResultInvalid
	default:
		return metrics.ResultError
	}
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return metrics.ResultInvalid
	case errors.Is(err, apperrors.ErrTooManyAttempts):
		return metrics.ResultThrottled
	default:
		return metrics.ResultError
	}
}

func (h *Handler) countSignup(result string) {
	if h.metrics != nil {
		h.metrics.Signups.WithLabelValues(result).Inc()
	}
}

func (h *Handler) countLogin(result string) {
	if h.metrics != nil {
		h.metrics.Logins.WithLabelValues(result).Inc()
	}
}
