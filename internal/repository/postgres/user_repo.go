package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
)

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const userCols = `id, email, platform, role, username, details, pwd_hash, salt_auth, created_at, updated_at`

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `
INSERT INTO users (id, email, platform, role, username, details, pwd_hash, salt_auth)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`
	err := r.db.Pool.QueryRow(ctx, q,
		u.ID, u.Identity.Email, u.Identity.Platform, u.Role.String(), u.Username,
		u.Details.ToMap(), u.PwdHash, u.SaltAuth,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByIdentity selects a user by (email, platform).
func (r *UserRepo) GetByIdentity(ctx context.Context, id model.Identity) (*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE email=$1 AND platform=$2`
	return scanUser(r.db.Pool.QueryRow(ctx, q, id.Email, id.Platform))
}

// storedNotifications is the notifications array already on the row, or '[]'.
const storedNotifications = `CASE WHEN jsonb_typeof(details->'notifications') = 'array'
THEN details->'notifications' ELSE '[]'::jsonb END`

// Save rewrites the mutable columns of a user. The stored notification list
// wins over the one in u; AppendNotification is its only writer.
func (r *UserRepo) Save(ctx context.Context, u *model.User) error {
	const q = `
UPDATE users
SET username=$2,
    details=($3::jsonb - 'notifications') || jsonb_build_object('notifications', ` + storedNotifications + `),
    pwd_hash=$4, salt_auth=$5, updated_at=now()
WHERE id=$1
RETURNING updated_at`
	err := r.db.Pool.QueryRow(ctx, q, u.ID, u.Username, u.Details.ToMap(), u.PwdHash, u.SaltAuth).
		Scan(&u.UpdatedAt)
	return notFound(err)
}

// AppendNotification adds requester to the notification list in a single statement.
func (r *UserRepo) AppendNotification(ctx context.Context, userID, requester uuid.UUID) error {
	const q = `
UPDATE users
SET details = jsonb_set(details, '{notifications}', ` + storedNotifications + ` || to_jsonb($2::text)),
    updated_at = now()
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, userID, requester.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Scan pages through users by ascending ID.
func (r *UserRepo) Scan(ctx context.Context, after uuid.UUID, limit int) ([]*model.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id > $1 ORDER BY id LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteAll removes every user.
func (r *UserRepo) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u       model.User
		role    string
		details map[string]any
		created time.Time
		updated time.Time
	)
	if err := row.Scan(
		&u.ID, &u.Identity.Email, &u.Identity.Platform, &role, &u.Username,
		&details, &u.PwdHash, &u.SaltAuth, &created, &updated,
	); err != nil {
		return nil, notFound(err)
	}
	var err error
	if u.Role, err = model.ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	if u.Details, err = model.DetailsFromMap(u.Role, details); err != nil {
		return nil, fmt.Errorf("user %s details: %w", u.ID, err)
	}
	u.CreatedAt, u.UpdatedAt = created, updated
	return &u, nil
}
