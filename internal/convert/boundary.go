// Package convert maps domain types to boundary DTOs shared by the REST and
// gRPC adapters, and DTOs to protobuf Struct messages.
package convert

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
)

// Location is the wire form of a point; either coordinate may be omitted in a patch.
type Location struct {
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// Object is the wire form of a graph node.
type Object struct {
	ID                    string         `json:"internalObjectId,omitempty"`
	Type                  string         `json:"type" validate:"required"`
	Alias                 string         `json:"alias"`
	Active                *bool          `json:"active" validate:"required"`
	CreatedBy             string         `json:"createdBy,omitempty" validate:"omitempty,uuid"`
	CreationTimestamp     *time.Time     `json:"creationTimestamp,omitempty"`
	ModificationTimestamp *time.Time     `json:"modificationTimestamp,omitempty"`
	Location              *Location      `json:"location,omitempty"`
	Details               map[string]any `json:"objectDetails" validate:"required"`
	Children              []string       `json:"children,omitempty"`
	Parents               []string       `json:"parents,omitempty"`
}

// ObjectPatch is the wire form of a partial update.
type ObjectPatch struct {
	Type              *string        `json:"type,omitempty"`
	Alias             *string        `json:"alias,omitempty"`
	Active            *bool          `json:"active,omitempty"`
	CreationTimestamp *time.Time     `json:"creationTimestamp,omitempty"`
	Location          *Location      `json:"location,omitempty"`
	Details           map[string]any `json:"objectDetails,omitempty"`
}

// ObjectID references another object, e.g. the child of a bind.
type ObjectID struct {
	InternalObjectID string `json:"internalObjectId" validate:"required,uuid"`
}

// User is the wire form of an account. Credentials never leave the server.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Platform  string         `json:"platform"`
	Role      string         `json:"role"`
	Username  string         `json:"username"`
	Details   map[string]any `json:"userDetails"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewUser is a registration request.
type NewUser struct {
	Email    string         `json:"email" validate:"required"`
	Platform string         `json:"platform" validate:"required"`
	Role     string         `json:"role" validate:"required"`
	Username string         `json:"username" validate:"required"`
	Password string         `json:"password" validate:"required"`
	Details  map[string]any `json:"userDetails"`
}

// Login is a credentials check.
type Login struct {
	Email    string `json:"email" validate:"required"`
	Platform string `json:"platform" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries the issued token and the caller's profile.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// UserPatch is a partial user update.
type UserPatch struct {
	Username *string        `json:"username,omitempty"`
	Details  map[string]any `json:"userDetails,omitempty"`
}

// Command is the wire form of a command log entry.
type Command struct {
	ID           string         `json:"id,omitempty"`
	Command      string         `json:"command" validate:"required"`
	TargetObject string         `json:"targetObject,omitempty" validate:"omitempty,uuid"`
	InvokedBy    string         `json:"invokedBy,omitempty"`
	Attributes   map[string]any `json:"commandAttributes,omitempty"`
	CreatedAt    *time.Time     `json:"invocationTimestamp,omitempty"`
}

// Subject is the wire form of a catalog entry.
type Subject struct {
	ID        string     `json:"id" validate:"required"`
	Name      string     `json:"name" validate:"required"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Count reports how many records an operation touched.
type Count struct {
	Count int64 `json:"count"`
}

// ParseID parses a uuid path or body parameter; malformed ids are ErrBadRequest.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, errs.ErrBadRequest)
	}
	return id, nil
}

func stamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func idStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// FromObject renders a domain object.
func FromObject(o *model.Object) Object {
	out := Object{
		ID:                    o.ID.String(),
		Type:                  o.Type,
		Alias:                 o.Alias,
		Active:                &o.Active,
		CreatedBy:             o.CreatedBy.String(),
		CreationTimestamp:     stamp(o.CreatedAt),
		ModificationTimestamp: stamp(o.UpdatedAt),
		Details:               o.Details,
		Children:              idStrings(o.Children),
		Parents:               idStrings(o.Parents),
	}
	if out.Details == nil {
		out.Details = map[string]any{}
	}
	if o.Location != nil {
		lat, lng := o.Location.Lat, o.Location.Lng
		out.Location = &Location{Lat: &lat, Lng: &lng}
	}
	return out
}

// FromObjects renders a list, never nil.
func FromObjects(objs []*model.Object) []Object {
	out := make([]Object, 0, len(objs))
	for _, o := range objs {
		out = append(out, FromObject(o))
	}
	return out
}

// ToNewObject maps a creation request. Server-owned fields are ignored.
func ToNewObject(in Object) (model.NewObject, error) {
	req := model.NewObject{
		Type:    in.Type,
		Alias:   in.Alias,
		Active:  in.Active,
		Details: in.Details,
	}
	if in.CreatedBy != "" {
		id, err := ParseID(in.CreatedBy)
		if err != nil {
			return model.NewObject{}, err
		}
		req.CreatedBy = id
	}
	if in.Location != nil {
		if in.Location.Lat == nil || in.Location.Lng == nil {
			return model.NewObject{}, fmt.Errorf("location needs lat and lng: %w", errs.ErrBadRequest)
		}
		req.Location = &model.Location{Lat: *in.Location.Lat, Lng: *in.Location.Lng}
	}
	return req, nil
}

// ToObjectPatch maps a partial update.
func ToObjectPatch(in ObjectPatch) model.ObjectPatch {
	p := model.ObjectPatch{
		Type:              in.Type,
		Alias:             in.Alias,
		Active:            in.Active,
		CreationTimestamp: in.CreationTimestamp,
		Details:           in.Details,
	}
	if in.Location != nil {
		p.Location = &model.LocationPatch{Lat: in.Location.Lat, Lng: in.Location.Lng}
	}
	return p
}

// FromUser renders a user without credentials.
func FromUser(u *model.User) User {
	return User{
		ID:        u.ID.String(),
		Email:     u.Identity.Email,
		Platform:  u.Identity.Platform,
		Role:      u.Role.String(),
		Username:  u.Username,
		Details:   u.Details.ToMap(),
		CreatedAt: u.CreatedAt,
	}
}

// FromUsers renders a list, never nil.
func FromUsers(us []*model.User) []User {
	out := make([]User, 0, len(us))
	for _, u := range us {
		out = append(out, FromUser(u))
	}
	return out
}

func ToNewUser(in NewUser) model.NewUser {
	return model.NewUser{
		Identity: model.Identity{Email: in.Email, Platform: in.Platform},
		Role:     in.Role,
		Username: in.Username,
		Password: in.Password,
		Details:  in.Details,
	}
}

func ToUserPatch(in UserPatch) model.UserPatch {
	return model.UserPatch{Username: in.Username, Details: in.Details}
}

// FromLogin renders a successful login.
func FromLogin(tok model.Tokens, u model.User) LoginResult {
	return LoginResult{AccessToken: tok.AccessToken, ExpiresAt: tok.ExpiresAt, User: FromUser(&u)}
}

func FromCommand(c *model.Command) Command {
	out := Command{
		ID:         c.ID.String(),
		Command:    c.Name,
		InvokedBy:  c.InvokedBy.String(),
		Attributes: c.Attributes,
		CreatedAt:  stamp(c.CreatedAt),
	}
	if c.TargetObject != nil {
		out.TargetObject = c.TargetObject.String()
	}
	return out
}

func FromCommands(cs []*model.Command) []Command {
	out := make([]Command, 0, len(cs))
	for _, c := range cs {
		out = append(out, FromCommand(c))
	}
	return out
}

// ToNewCommand maps an invocation request.
func ToNewCommand(in Command) (model.NewCommand, error) {
	req := model.NewCommand{Name: in.Command, Attributes: in.Attributes}
	if in.TargetObject != "" {
		id, err := ParseID(in.TargetObject)
		if err != nil {
			return model.NewCommand{}, err
		}
		req.TargetObject = &id
	}
	return req, nil
}

func FromSubject(s *model.Subject) Subject {
	return Subject{ID: s.ID, Name: s.Name, CreatedAt: stamp(s.CreatedAt)}
}

func FromSubjects(ss []*model.Subject) []Subject {
	out := make([]Subject, 0, len(ss))
	for _, s := range ss {
		out = append(out, FromSubject(s))
	}
	return out
}

func ToSubject(in Subject) model.Subject {
	return model.Subject{ID: in.ID, Name: in.Name}
}

// List envelopes; a Struct message must be a JSON object.
type (
	Objects struct {
		Objects []Object `json:"objects"`
	}
	Users struct {
		Users []User `json:"users"`
	}
	Commands struct {
		Commands []Command `json:"commands"`
	}
	Subjects struct {
		Subjects []Subject `json:"subjects"`
	}
)
