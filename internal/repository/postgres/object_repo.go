package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/repository"
)

// ObjectRepo implements ObjectRepository using PostgreSQL.
type ObjectRepo struct{ db *DB }

// NewObjectRepo constructs an object repository.
func NewObjectRepo(db *DB) *ObjectRepo { return &ObjectRepo{db: db} }

const objectCols = `id, type, alias, active, created_by, details, lat, lng, created_at, updated_at`

// Create inserts a new object row.
func (r *ObjectRepo) Create(ctx context.Context, o *model.Object) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		o.ID = id
	}
	lat, lng := splitLocation(o.Location)
	const q = `
INSERT INTO objects (id, type, alias, active, created_by, details, lat, lng)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`
	return r.db.Pool.QueryRow(ctx, q,
		o.ID, o.Type, o.Alias, o.Active, o.CreatedBy, detailsOrEmpty(o.Details), lat, lng,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

// Get selects an object and hydrates its edges.
func (r *ObjectRepo) Get(ctx context.Context, id uuid.UUID) (*model.Object, error) {
	const q = `SELECT ` + objectCols + ` FROM objects WHERE id=$1`
	o, err := scanObject(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if o.Children, err = r.db.queryIDs(ctx, childrenQuery, id); err != nil {
		return nil, err
	}
	if o.Parents, err = r.db.queryIDs(ctx, parentsQuery, id); err != nil {
		return nil, err
	}
	return o, nil
}

// Save rewrites the mutable columns; created_at is never touched.
func (r *ObjectRepo) Save(ctx context.Context, o *model.Object) error {
	lat, lng := splitLocation(o.Location)
	const q = `
UPDATE objects
SET type=$2, alias=$3, active=$4, details=$5, lat=$6, lng=$7, updated_at=now()
WHERE id=$1
RETURNING updated_at`
	err := r.db.Pool.QueryRow(ctx, q, o.ID, o.Type, o.Alias, o.Active, detailsOrEmpty(o.Details), lat, lng).
		Scan(&o.UpdatedAt)
	return notFound(err)
}

// List selects objects, optionally by type, oldest first.
func (r *ObjectRepo) List(ctx context.Context, f repository.ObjectFilter) ([]*model.Object, error) {
	const q = `
SELECT ` + objectCols + `
FROM objects
WHERE ($1 = '' OR type = $1)
ORDER BY created_at, id
LIMIT NULLIF($2, 0)`
	rows, err := r.db.Pool.Query(ctx, q, f.Type, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Object{}
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteAll removes every object. Edge rows are left for the sweeper.
func (r *ObjectRepo) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM objects`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanObject(row pgx.Row) (*model.Object, error) {
	var (
		o        model.Object
		lat, lng *float64
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(
		&o.ID, &o.Type, &o.Alias, &o.Active, &o.CreatedBy, &o.Details,
		&lat, &lng, &created, &updated,
	); err != nil {
		return nil, notFound(err)
	}
	if lat != nil || lng != nil {
		o.Location = &model.Location{}
		if lat != nil {
			o.Location.Lat = *lat
		}
		if lng != nil {
			o.Location.Lng = *lng
		}
	}
	if o.Details == nil {
		o.Details = map[string]any{}
	}
	o.CreatedAt, o.UpdatedAt = created, updated
	return &o, nil
}

func splitLocation(l *model.Location) (lat, lng *float64) {
	if l == nil {
		return nil, nil
	}
	a, b := l.Lat, l.Lng
	return &a, &b
}

func detailsOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
