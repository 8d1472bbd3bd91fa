package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/model"
)

// CommandRepo implements CommandRepository in memory.
type CommandRepo struct{ s *Store }

// NewCommandRepo constructs a command repository over s.
func NewCommandRepo(s *Store) *CommandRepo { return &CommandRepo{s: s} }

// Create inserts a command.
func (r *CommandRepo) Create(_ context.Context, c *model.Command) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		c.ID = id
	}
	c.CreatedAt = time.Now().UTC()

	cp := *c
	cp.Attributes = maps.Clone(c.Attributes)
	txn := r.s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableCommands, &commandRow{ID: c.ID.String(), Seq: r.s.nextSeq(), Command: &cp}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// List returns commands oldest first.
func (r *CommandRepo) List(context.Context) ([]*model.Command, error) {
	it, err := r.s.db.Txn(false).Get(tableCommands, indexID)
	if err != nil {
		return nil, err
	}
	rows, err := collect[*commandRow](it)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b *commandRow) int { return int(a.Seq - b.Seq) })
	out := make([]*model.Command, 0, len(rows))
	for _, row := range rows {
		cp := *row.Command
		cp.Attributes = maps.Clone(row.Command.Attributes)
		out = append(out, &cp)
	}
	return out, nil
}

// DeleteAll removes every command.
func (r *CommandRepo) DeleteAll(context.Context) (int64, error) {
	return r.s.deleteAll(tableCommands)
}

// SubjectRepo implements SubjectRepository in memory.
type SubjectRepo struct{ s *Store }

// NewSubjectRepo constructs a subject repository over s.
func NewSubjectRepo(s *Store) *SubjectRepo { return &SubjectRepo{s: s} }

// Upsert inserts or renames a subject; CreatedAt survives renames.
func (r *SubjectRepo) Upsert(_ context.Context, s *model.Subject) error {
	txn := r.s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableSubjects, indexID, s.ID)
	if err != nil {
		return err
	}
	if raw != nil {
		s.CreatedAt = raw.(*subjectRow).Subject.CreatedAt
	} else {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	if err := txn.Insert(tableSubjects, &subjectRow{ID: s.ID, Subject: &cp}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// List returns subjects ordered by id.
func (r *SubjectRepo) List(context.Context) ([]*model.Subject, error) {
	it, err := r.s.db.Txn(false).Get(tableSubjects, indexID)
	if err != nil {
		return nil, err
	}
	rows, err := collect[*subjectRow](it)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(rows, func(a, b *subjectRow) int { return strings.Compare(a.ID, b.ID) })
	out := make([]*model.Subject, 0, len(rows))
	for _, row := range rows {
		cp := *row.Subject
		out = append(out, &cp)
	}
	return out, nil
}
