package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"

	"jobprep_backend/internal/apperrors"
	"jobprep_backend/internal/auth"
	"jobprep_backend/internal/models"
	"jobprep_backend/internal/storage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Service interface {
	Signup(ctx context.Context, input SignupInput) (models.User, error)
	Login(ctx context.Context, email, password string) (models.LoginResult, error)
	Profile(ctx context.Context, email string) (models.User, error)
}

type TokenIssuer interface {
	Issue(claims map[string]any, ttl time.Duration) (string, error)
}

type SignupInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
	Phone    string
	Address  string
}

type service struct {
	storage storage.Storage
	hasher  auth.PasswordHasher
	tokens  TokenIssuer
	limiter *LoginLimiter
	log     *slog.Logger
}

// NewService wires the local auth flow. limiter may be nil to disable login
// throttling.
func NewService(st storage.Storage, hasher auth.PasswordHasher, tokens TokenIssuer, limiter *LoginLimiter, lgr *slog.Logger) *service {
	return &service{
		storage: st,
		hasher:  hasher,
		tokens:  tokens,
		limiter: limiter,
		log:     lgr,
	}
}

func (s *service) Signup(ctx context.Context, input SignupInput) (models.User, error) {
	const op = "service.Signup"

	log := s.log.With(slog.String("op", op))

	if err := validate.Struct(input); err != nil {
		return models.User{}, apperrors.Validation("invalid email or empty password")
	}
	if len(input.Password) > auth.MaxPasswordBytes {
		return models.User{}, apperrors.Validation(fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.CreateUser(ctx, models.User{
		ID:           id,
		Email:        input.Email,
		PasswordHash: passwordHash,
		Phone:        input.Phone,
		Address:      input.Address,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			log.Info("signup rejected, email taken")
			return models.User{}, apperrors.DuplicateAccount()
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))

	return user, nil
}

func (s *service) Login(ctx context.Context, email, password string) (models.LoginResult, error) {
	const op = "service.Login"

	log := s.log.With(slog.String("op", op))

	if s.limiter != nil && !s.limiter.Allow(email) {
		log.Warn("login throttled")
		return models.LoginResult{}, apperrors.TooManyAttempts()
	}

	cred, err := s.storage.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.LoginResult{}, apperrors.InvalidCredentials()
		}
		return models.LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if ok := s.hasher.Verify(password, cred.PasswordHash); !ok {
		return models.LoginResult{}, apperrors.InvalidCredentials()
	}

	token, err := s.tokens.Issue(map[string]any{
		"sub": cred.Email,
		"uid": cred.UserID.String(),
	}, 0)
	if err != nil {
		return models.LoginResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if s.limiter != nil {
		s.limiter.Reset(email)
	}

	log.Info("user logged in", slog.String("user_id", cred.UserID.String()))

	return models.LoginResult{
		AccessToken: token,
		TokenType:   models.TokenTypeBearer,
	}, nil
}

// Profile returns the account behind a verified token subject.
func (s *service) Profile(ctx context.Context, email string) (models.User, error) {
	const op = "service.Profile"

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, apperrors.Unauthorized("account no longer exists")
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
