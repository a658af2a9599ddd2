package visit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("visit not found")

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	List(ctx context.Context, limit, offset int) ([]*Visit, int, error)
	// ListDues returns visits whose due is not zero, newest first.
	ListDues(ctx context.Context, limit, offset int) ([]*Visit, int, error)
	// AccountRows sums visits per referrer within [from, to).
	AccountRows(ctx context.Context, from, to *time.Time) ([]AccountRow, error)
}
