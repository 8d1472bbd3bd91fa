// Package memory implements the repository interfaces on hashicorp/go-memdb.
// Rows hold private copies; callers never share memory with the store.
package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"

	"github.com/tamir303/Afekaton2024/internal/model"
)

const (
	tableUsers    = "users"
	tableObjects  = "objects"
	tableEdges    = "edges"
	tableCommands = "commands"
	tableSubjects = "subjects"

	indexID       = "id"
	indexIdentity = "identity"
	indexType     = "type"
	indexParent   = "parent"
	indexChild    = "child"
	indexPair     = "pair"
)

type userRow struct {
	ID   string
	Key  string // email$platform
	User *model.User
}

type objectRow struct {
	ID     string
	Type   string
	Seq    int64
	Object *model.Object
}

type edgeRow struct {
	Seq    int64
	Parent string
	Child  string
	Edge   model.Edge
}

type commandRow struct {
	ID      string
	Seq     int64
	Command *model.Command
}

type subjectRow struct {
	ID      string
	Subject *model.Subject
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableUsers: {
				Name: tableUsers,
				Indexes: map[string]*memdb.IndexSchema{
					indexID:       {Name: indexID, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					indexIdentity: {Name: indexIdentity, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "Key"}},
				},
			},
			tableObjects: {
				Name: tableObjects,
				Indexes: map[string]*memdb.IndexSchema{
					indexID:   {Name: indexID, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					indexType: {Name: indexType, Indexer: &memdb.StringFieldIndex{Field: "Type"}},
				},
			},
			tableEdges: {
				Name: tableEdges,
				Indexes: map[string]*memdb.IndexSchema{
					indexID:     {Name: indexID, Unique: true, Indexer: &memdb.IntFieldIndex{Field: "Seq"}},
					indexParent: {Name: indexParent, Indexer: &memdb.StringFieldIndex{Field: "Parent"}},
					indexChild:  {Name: indexChild, Indexer: &memdb.StringFieldIndex{Field: "Child"}},
					indexPair: {
						Name: indexPair,
						Indexer: &memdb.CompoundIndex{Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Parent"},
							&memdb.StringFieldIndex{Field: "Child"},
						}},
					},
				},
			},
			tableCommands: {
				Name: tableCommands,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {Name: indexID, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				},
			},
			tableSubjects: {
				Name: tableSubjects,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {Name: indexID, Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				},
			},
		},
	}
}

// Store is an in-memory database shared by the memory repositories.
type Store struct {
	db  *memdb.MemDB
	seq atomic.Int64
}

// New builds an empty store.
func New() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("memdb: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) nextSeq() int64 { return s.seq.Add(1) }

// collect drains an iterator into typed rows.
func collect[T any](it memdb.ResultIterator) ([]T, error) {
	var out []T
	for raw := it.Next(); raw != nil; raw = it.Next() {
		row, ok := raw.(T)
		if !ok {
			return nil, fmt.Errorf("memdb: unexpected row %T", raw)
		}
		out = append(out, row)
	}
	return out, nil
}

// deleteAll removes every row of table and reports the count.
func (s *Store) deleteAll(table string) (int64, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()
	n, err := txn.DeleteAll(table, indexID)
	if err != nil {
		return 0, err
	}
	txn.Commit()
	return int64(n), nil
}
