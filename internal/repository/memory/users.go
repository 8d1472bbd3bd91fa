package memory

import (
	"context"
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
)

// UserRepo implements UserRepository in memory.
type UserRepo struct{ s *Store }

// NewUserRepo constructs a user repository over s.
func NewUserRepo(s *Store) *UserRepo { return &UserRepo{s: s} }

// Create inserts a user; the identity must be free.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	txn := r.s.db.Txn(true)
	defer txn.Abort()

	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		u.ID = id
	}
	taken, err := txn.First(tableUsers, indexIdentity, u.Identity.Key())
	if err != nil {
		return err
	}
	if taken != nil {
		return errs.ErrAlreadyExists
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if err := txn.Insert(tableUsers, &userRow{ID: u.ID.String(), Key: u.Identity.Key(), User: u.Clone()}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// GetByID returns a copy of the stored user.
func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	return r.first(indexID, id.String())
}

// GetByIdentity returns a copy of the stored user.
func (r *UserRepo) GetByIdentity(_ context.Context, id model.Identity) (*model.User, error) {
	return r.first(indexIdentity, id.Key())
}

func (r *UserRepo) first(index, key string) (*model.User, error) {
	txn := r.s.db.Txn(false)
	raw, err := txn.First(tableUsers, index, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errs.ErrNotFound
	}
	return raw.(*userRow).User.Clone(), nil
}

// Save rewrites mutable fields; identity, role, notifications and CreatedAt are kept from the stored row.
func (r *UserRepo) Save(_ context.Context, u *model.User) error {
	txn := r.s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableUsers, indexID, u.ID.String())
	if err != nil {
		return err
	}
	if raw == nil {
		return errs.ErrNotFound
	}
	old := raw.(*userRow).User
	next := u.Clone()
	next.Identity, next.Role, next.CreatedAt = old.Identity, old.Role, old.CreatedAt
	next.Details.Notifications = slices.Clone(old.Details.Notifications)
	next.UpdatedAt = time.Now().UTC()
	if err := txn.Insert(tableUsers, &userRow{ID: next.ID.String(), Key: next.Identity.Key(), User: next}); err != nil {
		return err
	}
	txn.Commit()
	u.UpdatedAt = next.UpdatedAt
	return nil
}

// AppendNotification reads and rewrites the user inside one write txn.
func (r *UserRepo) AppendNotification(_ context.Context, userID, requester uuid.UUID) error {
	txn := r.s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tableUsers, indexID, userID.String())
	if err != nil {
		return err
	}
	if raw == nil {
		return errs.ErrNotFound
	}
	next := raw.(*userRow).User.Clone()
	next.Details.Notifications = append(next.Details.Notifications, requester)
	next.UpdatedAt = time.Now().UTC()
	if err := txn.Insert(tableUsers, &userRow{ID: next.ID.String(), Key: next.Identity.Key(), User: next}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Scan walks the id index from after, exclusive.
func (r *UserRepo) Scan(_ context.Context, after uuid.UUID, limit int) ([]*model.User, error) {
	txn := r.s.db.Txn(false)
	it, err := txn.LowerBound(tableUsers, indexID, after.String())
	if err != nil {
		return nil, err
	}
	var out []*model.User
	for raw := it.Next(); raw != nil && (limit <= 0 || len(out) < limit); raw = it.Next() {
		row := raw.(*userRow)
		if row.User.ID == after {
			continue
		}
		out = append(out, row.User.Clone())
	}
	return out, nil
}

// DeleteAll removes every user.
func (r *UserRepo) DeleteAll(context.Context) (int64, error) {
	return r.s.deleteAll(tableUsers)
}
