package model

import (
	"maps"
	"slices"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Location is an optional geographic point attached to an object.
type Location struct {
	Lat float64
	Lng float64
}

// Object is a typed node of the object graph.
type Object struct {
	ID        uuid.UUID
	Type      string
	Alias     string
	Active    bool
	CreatedBy uuid.UUID
	Details   map[string]any
	Location  *Location
	Children  []uuid.UUID // derived from edges, in bind order
	Parents   []uuid.UUID // derived from edges, in bind order
	CreatedAt time.Time   // immutable
	UpdatedAt time.Time
}

// Clone returns a copy that shares no slices or maps with o.
func (o *Object) Clone() *Object {
	c := *o
	c.Details = maps.Clone(o.Details)
	c.Children = slices.Clone(o.Children)
	c.Parents = slices.Clone(o.Parents)
	if o.Location != nil {
		loc := *o.Location
		c.Location = &loc
	}
	return &c
}

// NewObject is a creation request.
type NewObject struct {
	Type      string
	Alias     string
	Active    *bool
	CreatedBy uuid.UUID // defaults to the acting user
	Details   map[string]any
	Location  *Location
}

// Subjects returns the "subjects" entry of the request details.
func (n NewObject) Subjects() []string {
	return SubjectsOf(n.Details)
}

// LocationPatch updates latitude and longitude independently.
type LocationPatch struct {
	Lat *float64
	Lng *float64
}

// ObjectPatch is a partial update; nil fields are left untouched.
type ObjectPatch struct {
	Type              *string
	Alias             *string
	Active            *bool
	CreationTimestamp *time.Time // always rejected
	Location          *LocationPatch
	Details           map[string]any // merged key by key
}

// Edge is one parent -> child record. Duplicate pairs are allowed.
type Edge struct {
	Seq       int64
	ParentID  uuid.UUID
	ChildID   uuid.UUID
	CreatedAt time.Time
}
