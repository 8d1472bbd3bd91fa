// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/model"
)

// UserRepository provides CRUD access for users.
type UserRepository interface {
	// Create inserts a new user; a taken identity yields errs.ErrAlreadyExists.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByIdentity loads a user by (email, platform).
	GetByIdentity(ctx context.Context, id model.Identity) (*model.User, error)
	// Save persists username, details, credentials and UpdatedAt. Identity, role and
	// the notification list are never rewritten.
	Save(ctx context.Context, u *model.User) error
	// AppendNotification atomically appends requester to the user's notification list.
	AppendNotification(ctx context.Context, userID, requester uuid.UUID) error
	// Scan returns up to limit users with ID greater than after, ordered by ID.
	Scan(ctx context.Context, after uuid.UUID, limit int) ([]*model.User, error)
	// DeleteAll removes every user and returns the count.
	DeleteAll(ctx context.Context) (int64, error)
}

// CommandRepository stores the command log.
type CommandRepository interface {
	// Create inserts a command; ID and CreatedAt are assigned when zero.
	Create(ctx context.Context, c *model.Command) error
	// List returns all commands, oldest first.
	List(ctx context.Context) ([]*model.Command, error)
	// DeleteAll removes every command and returns the count.
	DeleteAll(ctx context.Context) (int64, error)
}

// SubjectRepository stores the subject catalog.
type SubjectRepository interface {
	// Upsert inserts or renames a subject by ID.
	Upsert(ctx context.Context, s *model.Subject) error
	// List returns all subjects ordered by ID.
	List(ctx context.Context) ([]*model.Subject, error)
}
