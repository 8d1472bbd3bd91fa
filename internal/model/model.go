// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // access token expiry (for diagnostics)
}

// Actor is the resolved caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Command is a persisted record of an invoked server-side command.
type Command struct {
	ID           uuid.UUID
	Name         string
	TargetObject *uuid.UUID
	InvokedBy    uuid.UUID
	Attributes   map[string]any
	CreatedAt    time.Time
}

// NewCommand is a request to invoke a command.
type NewCommand struct {
	Name         string
	TargetObject *uuid.UUID
	Attributes   map[string]any
}

// CommandGetRelatedProducers fans a help request out to users with matching subjects.
const CommandGetRelatedProducers = "GetRelatedProducers"

// Subject is a catalog entry (e.g. "math").
type Subject struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
