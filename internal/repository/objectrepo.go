package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/model"
)

// ObjectFilter narrows List. Zero values match everything.
type ObjectFilter struct {
	Type  string
	Limit int
}

// ObjectRepository provides access to graph nodes.
type ObjectRepository interface {
	// Create inserts an object, assigning ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, o *model.Object) error

	// Get loads an object with its Children and Parents hydrated from edges.
	Get(ctx context.Context, id uuid.UUID) (*model.Object, error)

	// Save rewrites mutable fields (type, alias, active, details, location, UpdatedAt).
	Save(ctx context.Context, o *model.Object) error

	// List returns objects ordered by creation time. Children/Parents are not hydrated.
	List(ctx context.Context, f ObjectFilter) ([]*model.Object, error)

	// DeleteAll removes every object and returns the count. Edges are left in place.
	DeleteAll(ctx context.Context) (int64, error)
}

// EdgeRepository stores parent -> child records independently of objects.
type EdgeRepository interface {
	// Add appends one edge record; duplicates are allowed.
	Add(ctx context.Context, parentID, childID uuid.UUID) (model.Edge, error)

	// Remove deletes every record for the pair and returns how many were removed.
	Remove(ctx context.Context, parentID, childID uuid.UUID) (int64, error)

	// Children lists child ids of parentID in bind order.
	Children(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error)

	// Parents lists parent ids of childID in bind order.
	Parents(ctx context.Context, childID uuid.UUID) ([]uuid.UUID, error)

	// PruneDangling removes edges whose endpoints no longer exist.
	PruneDangling(ctx context.Context) (int64, error)
}
