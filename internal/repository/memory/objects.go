package memory

import (
	"context"
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/hashicorp/go-memdb"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/repository"
)

// ObjectRepo implements ObjectRepository in memory.
type ObjectRepo struct{ s *Store }

// NewObjectRepo constructs an object repository over s.
func NewObjectRepo(s *Store) *ObjectRepo { return &ObjectRepo{s: s} }

// Create inserts an object and assigns ID and timestamps.
func (r *ObjectRepo) Create(_ context.Context, o *model.Object) error {
	if o.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		o.ID = id
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	if o.Details == nil {
		o.Details = map[string]any{}
	}

	stored := o.Clone()
	stored.Children, stored.Parents = nil, nil

	txn := r.s.db.Txn(true)
	defer txn.Abort()
	row := &objectRow{ID: o.ID.String(), Type: o.Type, Seq: r.s.nextSeq(), Object: stored}
	if err := txn.Insert(tableObjects, row); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Get returns a copy of the object with edges hydrated from one snapshot.
func (r *ObjectRepo) Get(_ context.Context, id uuid.UUID) (*model.Object, error) {
	txn := r.s.db.Txn(false)
	raw, err := txn.First(tableObjects, indexID, id.String())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errs.ErrNotFound
	}
	o := raw.(*objectRow).Object.Clone()
	if o.Children, err = edgeIDs(txn, indexParent, id, func(e *edgeRow) uuid.UUID { return e.Edge.ChildID }); err != nil {
		return nil, err
	}
	if o.Parents, err = edgeIDs(txn, indexChild, id, func(e *edgeRow) uuid.UUID { return e.Edge.ParentID }); err != nil {
		return nil, err
	}
	return o, nil
}

// Save rewrites mutable fields; CreatedAt and CreatedBy stay as stored.
func (r *ObjectRepo) Save(_ context.Context, o *model.Object) error {
	txn := r.s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableObjects, indexID, o.ID.String())
	if err != nil {
		return err
	}
	if raw == nil {
		return errs.ErrNotFound
	}
	old := raw.(*objectRow)
	next := o.Clone()
	next.Children, next.Parents = nil, nil
	next.CreatedAt, next.CreatedBy = old.Object.CreatedAt, old.Object.CreatedBy
	next.UpdatedAt = time.Now().UTC()
	if err := txn.Insert(tableObjects, &objectRow{ID: old.ID, Type: next.Type, Seq: old.Seq, Object: next}); err != nil {
		return err
	}
	txn.Commit()
	o.UpdatedAt = next.UpdatedAt
	return nil
}

// List returns objects in insertion order.
func (r *ObjectRepo) List(_ context.Context, f repository.ObjectFilter) ([]*model.Object, error) {
	txn := r.s.db.Txn(false)
	var (
		it  memdb.ResultIterator
		err error
	)
	if f.Type != "" {
		it, err = txn.Get(tableObjects, indexType, f.Type)
	} else {
		it, err = txn.Get(tableObjects, indexID)
	}
	if err != nil {
		return nil, err
	}
	rows, err := collect[*objectRow](it)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b *objectRow) int { return int(a.Seq - b.Seq) })
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	out := make([]*model.Object, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Object.Clone())
	}
	return out, nil
}

// DeleteAll removes every object and leaves edges alone.
func (r *ObjectRepo) DeleteAll(context.Context) (int64, error) {
	return r.s.deleteAll(tableObjects)
}
