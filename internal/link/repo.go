package link

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the durable-store operations for Link records.
// IncrementClicks is the only mutation the resolution path performs; the
// remaining operations belong to the owning CRUD flow.
type Repository interface {
	Create(ctx context.Context, l Link) (Link, error)
	GetBySlug(ctx context.Context, slug string) (Link, error)
	Update(ctx context.Context, l Link) (Link, error)
	Delete(ctx context.Context, slug string, userID uuid.UUID) error
	IncrementClicks(ctx context.Context, slug string, delta int64) error
}
