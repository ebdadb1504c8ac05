package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cinbrain/shortlinks/internal/errx"
)

// User carries the fields the auth flows need; account management itself
// lives outside this service.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
}

// UserStore defines the user lookups the password-reset flow depends on.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// queryRower abstracts *pgxpool.Pool so the store can run against a single
// connection in tests. UpdatePassword uses RETURNING so everything fits one
// method.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type userStore struct {
	pool queryRower
}

// NewUserStore creates a Postgres-backed UserStore.
func NewUserStore(pool queryRower) UserStore {
	return &userStore{pool: pool}
}

func (s *userStore) GetByEmail(ctx context.Context, email string) (User, error) {
	const op = "auth.users.GetByEmail"

	var u User
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, errx.E(op, errx.NotFound, err)
		}
		return User{}, errx.E(op, errx.Unavailable, err)
	}
	return u, nil
}

func (s *userStore) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	const op = "auth.users.GetByID"

	var u User
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash FROM users WHERE id = $1`, id)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, errx.E(op, errx.NotFound, err)
		}
		return User{}, errx.E(op, errx.Unavailable, err)
	}
	return u, nil
}

func (s *userStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	const op = "auth.users.UpdatePassword"

	row := s.pool.QueryRow(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1 RETURNING id`,
		id, passwordHash)
	var returned uuid.UUID
	if err := row.Scan(&returned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errx.E(op, errx.NotFound, err)
		}
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}
