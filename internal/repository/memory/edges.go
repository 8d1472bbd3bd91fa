package memory

import (
	"context"
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/hashicorp/go-memdb"

	"github.com/tamir303/Afekaton2024/internal/model"
)

// EdgeRepo implements EdgeRepository in memory.
type EdgeRepo struct{ s *Store }

// NewEdgeRepo constructs an edge repository over s.
func NewEdgeRepo(s *Store) *EdgeRepo { return &EdgeRepo{s: s} }

// Add inserts one edge row.
func (r *EdgeRepo) Add(_ context.Context, parentID, childID uuid.UUID) (model.Edge, error) {
	e := model.Edge{
		Seq:       r.s.nextSeq(),
		ParentID:  parentID,
		ChildID:   childID,
		CreatedAt: time.Now().UTC(),
	}
	txn := r.s.db.Txn(true)
	defer txn.Abort()
	row := &edgeRow{Seq: e.Seq, Parent: parentID.String(), Child: childID.String(), Edge: e}
	if err := txn.Insert(tableEdges, row); err != nil {
		return model.Edge{}, err
	}
	txn.Commit()
	return e, nil
}

// Remove deletes every row for the pair.
func (r *EdgeRepo) Remove(_ context.Context, parentID, childID uuid.UUID) (int64, error) {
	txn := r.s.db.Txn(true)
	defer txn.Abort()
	n, err := txn.DeleteAll(tableEdges, indexPair, parentID.String(), childID.String())
	if err != nil {
		return 0, err
	}
	txn.Commit()
	return int64(n), nil
}

// Children lists child ids in bind order.
func (r *EdgeRepo) Children(_ context.Context, parentID uuid.UUID) ([]uuid.UUID, error) {
	return edgeIDs(r.s.db.Txn(false), indexParent, parentID, func(e *edgeRow) uuid.UUID { return e.Edge.ChildID })
}

// Parents lists parent ids in bind order.
func (r *EdgeRepo) Parents(_ context.Context, childID uuid.UUID) ([]uuid.UUID, error) {
	return edgeIDs(r.s.db.Txn(false), indexChild, childID, func(e *edgeRow) uuid.UUID { return e.Edge.ParentID })
}

// PruneDangling drops rows whose parent or child is gone.
func (r *EdgeRepo) PruneDangling(context.Context) (int64, error) {
	txn := r.s.db.Txn(true)
	defer txn.Abort()

	it, err := txn.Get(tableEdges, indexID)
	if err != nil {
		return 0, err
	}
	rows, err := collect[*edgeRow](it)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, row := range rows {
		parent, err := txn.First(tableObjects, indexID, row.Parent)
		if err != nil {
			return 0, err
		}
		child, err := txn.First(tableObjects, indexID, row.Child)
		if err != nil {
			return 0, err
		}
		if parent != nil && child != nil {
			continue
		}
		if err := txn.Delete(tableEdges, row); err != nil {
			return 0, err
		}
		n++
	}
	txn.Commit()
	return n, nil
}

func edgeIDs(txn *memdb.Txn, index string, id uuid.UUID, pick func(*edgeRow) uuid.UUID) ([]uuid.UUID, error) {
	it, err := txn.Get(tableEdges, index, id.String())
	if err != nil {
		return nil, err
	}
	rows, err := collect[*edgeRow](it)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b *edgeRow) int { return int(a.Seq - b.Seq) })
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		out = append(out, pick(row))
	}
	return out, nil
}
