package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

type TestRepository interface {
	Create(ctx context.Context, t *Test) error
	GetByID(ctx context.Context, id int64) (*Test, error)
	Update(ctx context.Context, t *Test) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, activeOnly bool) ([]*Test, error)
	// ExistingIDs reports which of ids are present in the catalog.
	ExistingIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
}

type GroupRepository interface {
	Create(ctx context.Context, g *Group) error
	GetByID(ctx context.Context, id int64) (*Group, error)
	Update(ctx context.Context, g *Group) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Group, error)
}
