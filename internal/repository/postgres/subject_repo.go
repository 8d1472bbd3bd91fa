package postgres

import (
	"context"

	"github.com/tamir303/Afekaton2024/internal/model"
)

// SubjectRepo implements SubjectRepository using PostgreSQL.
type SubjectRepo struct{ db *DB }

// NewSubjectRepo constructs a subject repository.
func NewSubjectRepo(db *DB) *SubjectRepo { return &SubjectRepo{db: db} }

// Upsert inserts a subject or renames an existing one.
func (r *SubjectRepo) Upsert(ctx context.Context, s *model.Subject) error {
	const q = `
INSERT INTO subjects (id, name)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name
RETURNING created_at`
	return r.db.Pool.QueryRow(ctx, q, s.ID, s.Name).Scan(&s.CreatedAt)
}

// List selects all subjects ordered by id.
func (r *SubjectRepo) List(ctx context.Context) ([]*model.Subject, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, name, created_at FROM subjects ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Subject{}
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
