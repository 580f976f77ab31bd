package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobprep_backend/internal/models"
)

const (
	usersTable = `"user"`

	uniqueViolation = "23505"
)

var (
	ErrEmailTaken = errors.New("email already registered")
	ErrNotFound   = errors.New("account not found")
)

type Storage interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetCredentialsByEmail(ctx context.Context, email string) (models.Credentials, error)

	Ping(ctx context.Context) error
	Close()
}

// DB is the subset of *pgxpool.Pool the storage needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

type PostgresStorage struct {
	db DB
}

// Connect opens a pool against dbURL and checks it is reachable. maxConns <= 0
// keeps the pgxpool default.
func Connect(ctx context.Context, dbURL string, maxConns int32) (*pgxpool.Pool, error) {
	const op = "storage.Connect"

	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pool, nil
}

func NewPostgresStorage(db DB) *PostgresStorage {
	return &PostgresStorage{
		db: db,
	}
}

// CreateUser inserts user inside a transaction. A duplicate email rolls the
// transaction back and returns ErrEmailTaken.
func (p *PostgresStorage) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.CreateUser"

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := fmt.Sprintf(`INSERT INTO %s(id, email, password_hash, phone, address)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at, updated_at;`, usersTable)

	err = tx.QueryRow(ctx, query,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		nullable(user.Phone),
		nullable(user.Address),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.GetUserByEmail"

	var (
		user models.User
		id   string
	)
	query := fmt.Sprintf(`SELECT id, email, COALESCE(phone, ''), COALESCE(address, ''), created_at, updated_at
	FROM %s WHERE email=$1;`, usersTable)

	err := p.db.QueryRow(ctx, query, email).Scan(
		&id,
		&user.Email,
		&user.Phone,
		&user.Address,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if user.ID, err = uuid.FromString(id); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (p *PostgresStorage) GetCredentialsByEmail(ctx context.Context, email string) (models.Credentials, error) {
	const op = "storage.GetCredentialsByEmail"

	var (
		cred models.Credentials
		id   string
	)
	query := fmt.Sprintf("SELECT id, email, password_hash FROM %s WHERE email=$1", usersTable)

	err := p.db.QueryRow(ctx, query, email).Scan(&id, &cred.Email, &cred.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Credentials{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}

	if cred.UserID, err = uuid.FromString(id); err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}

	return cred, nil
}

func (p *PostgresStorage) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
