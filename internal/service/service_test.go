package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"jobprep_backend/internal/apperrors"
	"jobprep_backend/internal/auth"
	"jobprep_backend/internal/models"
	"jobprep_backend/internal/storage"
)

// --- helpers ---

type memStorage struct {
	mu     sync.Mutex
	users  map[string]models.User
	writes atomic.Int32
}

func newMemStorage() *memStorage {
	return &memStorage{users: make(map[string]models.User)}
}

func (m *memStorage) CreateUser(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Email]; ok {
		return models.User{}, storage.ErrEmailTaken
	}
	m.writes.Add(1)
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.Email] = user
	return user, nil
}

func (m *memStorage) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (m *memStorage) GetCredentialsByEmail(ctx context.Context, email string) (models.Credentials, error) {
	u, err := m.GetUserByEmail(ctx, email)
	if err != nil {
		return models.Credentials{}, err
	}
	return models.Credentials{UserID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash}, nil
}

func (m *memStorage) Ping(context.Context) error { return nil }
func (m *memStorage) Close()                     {}

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *mockStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *mockStorage) GetCredentialsByEmail(ctx context.Context, email string) (models.Credentials, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.Credentials), args.Error(1)
}

func (m *mockStorage) Ping(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStorage) Close()                         {}

type failingIssuer struct{}

func (failingIssuer) Issue(map[string]any, time.Duration) (string, error) {
	return "", errors.New("sign failed")
}

var testKey = []byte("test-signing-key")

func newTestService(t *testing.T, st storage.Storage, limiter *LoginLimiter) (*service, *auth.TokenIssuer) {
	t.Helper()

	issuer, err := auth.NewTokenIssuer(testKey, 0)
	require.NoError(t, err)

	lgr := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, auth.NewBcryptHasher(bcrypt.MinCost), issuer, limiter, lgr), issuer
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)
}

// --- signup ---

func TestSignup_Success(t *testing.T) {
	st := newMemStorage()
	svc, _ := newTestService(t, st, nil)

	user, err := svc.Signup(context.Background(), SignupInput{
		Email:    "a@x.io",
		Password: "pw1",
		Phone:    "+100",
	})
	require.NoError(t, err)

	assert.Equal(t, "a@x.io", user.Email)
	assert.Equal(t, "+100", user.Phone)
	assert.False(t, user.ID.IsNil())
	assert.NotEqual(t, "pw1", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw1")))
	assert.EqualValues(t, 1, st.writes.Load())
}

func TestSignup_Duplicate(t *testing.T) {
	st := newMemStorage()
	svc, _ := newTestService(t, st, nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@x.io", Password: "pw1"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, SignupInput{Email: "a@x.io", Password: "other"})
	assertKind(t, err, apperrors.ErrDuplicateAccount)
	assert.Equal(t, "User with this email already exists", apperrors.Detail(err))
	assert.EqualValues(t, 1, st.writes.Load())
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input SignupInput
	}{
		{name: "empty email", input: SignupInput{Password: "pw"}},
		{name: "malformed email", input: SignupInput{Email: "not-an-email", Password: "pw"}},
		{name: "empty password", input: SignupInput{Email: "a@x.io"}},
		{name: "password too long", input: SignupInput{Email: "a@x.io", Password: strings.Repeat("p", auth.MaxPasswordBytes+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMemStorage()
			svc, _ := newTestService(t, st, nil)

			_, err := svc.Signup(context.Background(), tt.input)
			assertKind(t, err, apperrors.ErrValidation)
			assert.EqualValues(t, 0, st.writes.Load())
		})
	}
}

func TestSignup_PasswordAtLimit(t *testing.T) {
	svc, _ := newTestService(t, newMemStorage(), nil)

	_, err := svc.Signup(context.Background(), SignupInput{
		Email:    "a@x.io",
		Password: strings.Repeat("p", auth.MaxPasswordBytes),
	})
	assert.NoError(t, err)
}

func TestSignup_StorageError(t *testing.T) {
	st := new(mockStorage)
	st.On("CreateUser", mock.Anything, mock.AnythingOfType("models.User")).
		Return(models.User{}, errors.New("connection reset"))
	svc, _ := newTestService(t, st, nil)

	_, err := svc.Signup(context.Background(), SignupInput{Email: "a@x.io", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
	assert.Equal(t, "Internal server error", apperrors.Detail(err))
	st.AssertExpectations(t)
}

func TestSignup_ConcurrentSameEmail(t *testing.T) {
	st := newMemStorage()
	svc, _ := newTestService(t, st, nil)

	const n = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		dupes     atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Signup(context.Background(), SignupInput{Email: "race@x.io", Password: "pw"})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, apperrors.ErrDuplicateAccount):
				dupes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())
	assert.EqualValues(t, n-1, dupes.Load())
}

// --- login ---

func TestLogin_Success(t *testing.T) {
	st := newMemStorage()
	svc, issuer := newTestService(t, st, nil)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Email: "a@x.io", Password: "pw1"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, "a@x.io", "pw1")
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeBearer, res.TokenType)

	claims, err := issuer.Verify(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", claims["sub"])
	assert.Equal(t, user.ID.String(), claims["uid"])
	assert.EqualValues(t, 1, st.writes.Load())
}

func TestLogin_UnknownEmailAndWrongPasswordIndistinguishable(t *testing.T) {
	st := newMemStorage()
	svc, _ := newTestService(t, st, nil)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@x.io", Password: "pw1"})
	require.NoError(t, err)

	_, wrongPw := svc.Login(ctx, "a@x.io", "wrong")
	_, unknown := svc.Login(ctx, "nobody@x.io", "pw1")

	assertKind(t, wrongPw, apperrors.ErrInvalidCredentials)
	assertKind(t, unknown, apperrors.ErrInvalidCredentials)
	assert.Equal(t, apperrors.Detail(wrongPw), apperrors.Detail(unknown))
	assert.Equal(t, apperrors.HTTPStatus(wrongPw), apperrors.HTTPStatus(unknown))
	assert.Equal(t, "Invalid username or password", apperrors.Detail(unknown))
}

func TestLogin_StorageError(t *testing.T) {
	st := new(mockStorage)
	st.On("GetCredentialsByEmail", mock.Anything, "a@x.io").
		Return(models.Credentials{}, errors.New("timeout"))
	svc, _ := newTestService(t, st, nil)

	_, err := svc.Login(context.Background(), "a@x.io", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
}

func TestLogin_IssueError(t *testing.T) {
	st := newMemStorage()
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("pw")
	require.NoError(t, err)
	_, err = st.CreateUser(context.Background(), models.User{Email: "a@x.io", PasswordHash: hash})
	require.NoError(t, err)

	lgr := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(st, hasher, failingIssuer{}, nil, lgr)

	_, err = svc.Login(context.Background(), "a@x.io", "pw")
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.HTTPStatus(err))
}

func TestLogin_Throttled(t *testing.T) {
	st := new(mockStorage)
	st.On("GetCredentialsByEmail", mock.Anything, mock.Anything).
		Return(models.Credentials{}, storage.ErrNotFound)

	limiter := NewLoginLimiter(0, 2, time.Minute, 0)
	svc, _ := newTestService(t, st, limiter)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, "a@x.io", "pw")
		assertKind(t, err, apperrors.ErrInvalidCredentials)
	}

	_, err := svc.Login(ctx, "a@x.io", "pw")
	assertKind(t, err, apperrors.ErrTooManyAttempts)
	assert.Equal(t, 429, apperrors.HTTPStatus(err))

	// The throttled attempt never reaches the store.
	st.AssertNumberOfCalls(t, "GetCredentialsByEmail", 2)

	_, err = svc.Login(ctx, "b@x.io", "pw")
	assertKind(t, err, apperrors.ErrInvalidCredentials)
}

func TestLogin_SuccessDoesNotCountAgainstLimit(t *testing.T) {
	st := newMemStorage()
	limiter := NewLoginLimiter(0, 1, time.Minute, 0)
	svc, _ := newTestService(t, st, limiter)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@x.io", Password: "pw"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Login(ctx, "a@x.io", "pw")
		require.NoError(t, err, "login %d", i)
	}

	_, err = svc.Login(ctx, "a@x.io", "wrong")
	assertKind(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "a@x.io", "pw")
	assertKind(t, err, apperrors.ErrTooManyAttempts)
}

// --- profile ---

func TestProfile(t *testing.T) {
	st := newMemStorage()
	svc, _ := newTestService(t, st, nil)
	ctx := context.Background()

	created, err := svc.Signup(ctx, SignupInput{Email: "a@x.io", Password: "pw", Address: "Main st"})
	require.NoError(t, err)

	got, err := svc.Profile(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Main st", got.Address)

	_, err = svc.Profile(ctx, "gone@x.io")
	assertKind(t, err, apperrors.ErrUnauthorized)
}
