package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/model"
)

// CommandRepo implements CommandRepository using PostgreSQL.
type CommandRepo struct{ db *DB }

// NewCommandRepo constructs a command repository.
func NewCommandRepo(db *DB) *CommandRepo { return &CommandRepo{db: db} }

// Create inserts a command row.
func (r *CommandRepo) Create(ctx context.Context, c *model.Command) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		c.ID = id
	}
	const q = `
INSERT INTO commands (id, name, target_object, invoked_by, attributes)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`
	return r.db.Pool.QueryRow(ctx, q, c.ID, c.Name, c.TargetObject, c.InvokedBy, detailsOrEmpty(c.Attributes)).
		Scan(&c.CreatedAt)
}

// List selects all commands, oldest first.
func (r *CommandRepo) List(ctx context.Context) ([]*model.Command, error) {
	const q = `
SELECT id, name, target_object, invoked_by, attributes, created_at
FROM commands
ORDER BY created_at, id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Command{}
	for rows.Next() {
		var c model.Command
		if err := rows.Scan(&c.ID, &c.Name, &c.TargetObject, &c.InvokedBy, &c.Attributes, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteAll removes every command.
func (r *CommandRepo) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM commands`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
