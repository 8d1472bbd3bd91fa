package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/model"
)

const (
	childrenQuery = `SELECT child_id FROM object_edges WHERE parent_id=$1 ORDER BY seq`
	parentsQuery  = `SELECT parent_id FROM object_edges WHERE child_id=$1 ORDER BY seq`
)

// EdgeRepo implements EdgeRepository using PostgreSQL.
// A single row carries both directions of a relation.
type EdgeRepo struct{ db *DB }

// NewEdgeRepo constructs an edge repository.
func NewEdgeRepo(db *DB) *EdgeRepo { return &EdgeRepo{db: db} }

// Add inserts one edge row.
func (r *EdgeRepo) Add(ctx context.Context, parentID, childID uuid.UUID) (model.Edge, error) {
	const q = `
INSERT INTO object_edges (parent_id, child_id)
VALUES ($1, $2)
RETURNING seq, created_at`
	e := model.Edge{ParentID: parentID, ChildID: childID}
	if err := r.db.Pool.QueryRow(ctx, q, parentID, childID).Scan(&e.Seq, &e.CreatedAt); err != nil {
		return model.Edge{}, err
	}
	return e, nil
}

// Remove deletes every row for the pair in one statement.
func (r *EdgeRepo) Remove(ctx context.Context, parentID, childID uuid.UUID) (int64, error) {
	const q = `DELETE FROM object_edges WHERE parent_id=$1 AND child_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, parentID, childID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Children lists child ids in bind order.
func (r *EdgeRepo) Children(ctx context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	return r.db.queryIDs(ctx, childrenQuery, parentID)
}

// Parents lists parent ids in bind order.
func (r *EdgeRepo) Parents(ctx context.Context, childID uuid.UUID) ([]uuid.UUID, error) {
	return r.db.queryIDs(ctx, parentsQuery, childID)
}

// PruneDangling deletes rows pointing at objects that no longer exist.
func (r *EdgeRepo) PruneDangling(ctx context.Context) (int64, error) {
	const q = `
DELETE FROM object_edges e
WHERE NOT EXISTS (SELECT 1 FROM objects o WHERE o.id = e.parent_id)
   OR NOT EXISTS (SELECT 1 FROM objects o WHERE o.id = e.child_id)`
	tag, err := r.db.Pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
