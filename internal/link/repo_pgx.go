package link

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cinbrain/shortlinks/internal/errx"
	"github.com/cinbrain/shortlinks/internal/idgen"
)

// db abstracts *pgxpool.Pool so the repository can be exercised against a
// single connection in tests.
type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pgxRepo struct {
	db  db
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a Postgres-backed Repository.
func NewRepository(db db, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	// Default: UUID v7 for insert locality.
	if config.IDGenerator == nil {
		config.IDGenerator = idgen.NewV7(idgen.WithRetries(1))
	}

	return &pgxRepo{
		db:  db,
		ids: config.IDGenerator,
	}
}

const linkColumns = `id, user_id, slug, original_url, title, description,
	clicks, is_active, expires_at, created_at, updated_at`

func scanLink(row pgx.Row) (Link, error) {
	var l Link
	var title, description *string
	err := row.Scan(
		&l.ID, &l.UserID, &l.Slug, &l.OriginalURL, &title, &description,
		&l.Clicks, &l.IsActive, &l.ExpiresAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return Link{}, err
	}
	if title != nil {
		l.Title = *title
	}
	if description != nil {
		l.Description = *description
	}
	return l, nil
}

func isSlugUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" &&
		pgErr.ConstraintName == "links_slug_unique"
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isSlugUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *pgxRepo) Create(ctx context.Context, l Link) (Link, error) {
	const op = "link.repo.Create"

	if l.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		l.ID = id
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO links (id, user_id, slug, original_url, title, description, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+linkColumns,
		l.ID, l.UserID, l.Slug, l.OriginalURL,
		nullable(l.Title), nullable(l.Description), l.ExpiresAt,
	)

	created, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *pgxRepo) GetBySlug(ctx context.Context, slug string) (Link, error) {
	const op = "link.repo.GetBySlug"

	row := r.db.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE slug = $1`, slug)

	l, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return l, nil
}

func (r *pgxRepo) Update(ctx context.Context, l Link) (Link, error) {
	const op = "link.repo.Update"

	row := r.db.QueryRow(ctx, `
		UPDATE links
		SET original_url = $3,
		    title = $4,
		    description = $5,
		    is_active = $6,
		    expires_at = $7,
		    updated_at = now()
		WHERE slug = $1 AND user_id = $2
		RETURNING `+linkColumns,
		l.Slug, l.UserID, l.OriginalURL,
		nullable(l.Title), nullable(l.Description), l.IsActive, l.ExpiresAt,
	)

	updated, err := scanLink(row)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return updated, nil
}

func (r *pgxRepo) Delete(ctx context.Context, slug string, userID uuid.UUID) error {
	const op = "link.repo.Delete"

	tag, err := r.db.Exec(ctx,
		`DELETE FROM links WHERE slug = $1 AND user_id = $2`, slug, userID)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("link not found"))
	}
	return nil
}

// IncrementClicks bumps the click counter by delta. It is called from the
// click worker with the worker's own handle, never from a request context.
func (r *pgxRepo) IncrementClicks(ctx context.Context, slug string, delta int64) error {
	const op = "link.repo.IncrementClicks"

	tag, err := r.db.Exec(ctx,
		`UPDATE links SET clicks = clicks + $2 WHERE slug = $1`, slug, delta)
	if err != nil {
		return mapRepoError(op, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("link not found"))
	}
	return nil
}
