package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/errs"
)

// Identity is the external identity of a user. The (Email, Platform) pair is unique.
type Identity struct {
	Email    string
	Platform string
}

// Key renders the stored identity key "email$platform".
func (i Identity) Key() string { return i.Email + "$" + i.Platform }

// Valid reports whether both parts are set.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.Email) != "" && strings.TrimSpace(i.Platform) != ""
}

// User represents an account stored on the server. Credentials are never stored in plaintext.
type User struct {
	ID        uuid.UUID
	Identity  Identity
	Role      Role // immutable after creation
	Username  string
	Details   UserDetails
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	c := *u
	c.Details = u.Details.Clone()
	c.PwdHash = slices.Clone(u.PwdHash)
	c.SaltAuth = slices.Clone(u.SaltAuth)
	return &c
}

// NewUser is a registration request.
type NewUser struct {
	Identity Identity
	Role     string
	Username string
	Password string
	Details  map[string]any
}

// UserPatch is a partial user update.
type UserPatch struct {
	Username *string
	Details  map[string]any // merged key by key; "password" re-hashes credentials
}

// Keys with dedicated meaning inside the stored details map.
const (
	DetailsSubjects      = "subjects"
	DetailsNotifications = "notifications"
	DetailsPassword      = "password"
)

// RoleDetails is the role-specific part of UserDetails.
type RoleDetails interface {
	Role() Role
	// Capabilities lists the subjects this user can be matched on.
	Capabilities() []string
}

// TutorDetails describes what a researcher offers.
type TutorDetails struct {
	Subjects []string
}

func (TutorDetails) Role() Role { return RoleResearcher }
func (d TutorDetails) Capabilities() []string { return d.Subjects }

// StudentDetails describes what a participant needs.
type StudentDetails struct {
	Subjects []string
}

func (StudentDetails) Role() Role { return RoleParticipant }
func (d StudentDetails) Capabilities() []string { return d.Subjects }

// AdminDetails carries nothing; administrators are never matched.
type AdminDetails struct{}

func (AdminDetails) Role() Role { return RoleAdmin }
func (AdminDetails) Capabilities() []string { return nil }

// UserDetails is the role-tagged profile of a user.
type UserDetails struct {
	Profile       RoleDetails
	Notifications []uuid.UUID    // ids of users who asked for help
	Extra         map[string]any // keys without dedicated meaning
}

// Capabilities returns the profile's subjects or nil.
func (d UserDetails) Capabilities() []string {
	if d.Profile == nil {
		return nil
	}
	return d.Profile.Capabilities()
}

// Clone returns a copy sharing no slices or maps with d.
func (d UserDetails) Clone() UserDetails {
	c := UserDetails{
		Notifications: slices.Clone(d.Notifications),
		Extra:         maps.Clone(d.Extra),
	}
	switch p := d.Profile.(type) {
	case TutorDetails:
		c.Profile = TutorDetails{Subjects: slices.Clone(p.Subjects)}
	case StudentDetails:
		c.Profile = StudentDetails{Subjects: slices.Clone(p.Subjects)}
	default:
		c.Profile = p
	}
	return c
}

// ToMap renders the flat stored form.
func (d UserDetails) ToMap() map[string]any {
	m := make(map[string]any, len(d.Extra)+2)
	for k, v := range d.Extra {
		m[k] = v
	}
	switch p := d.Profile.(type) {
	case TutorDetails:
		m[DetailsSubjects] = toAnySlice(p.Subjects)
	case StudentDetails:
		m[DetailsSubjects] = toAnySlice(p.Subjects)
	}
	if d.Notifications != nil {
		ids := make([]any, 0, len(d.Notifications))
		for _, id := range d.Notifications {
			ids = append(ids, id.String())
		}
		m[DetailsNotifications] = ids
	}
	return m
}

// Merge overlays patch onto the stored form key by key and parses the result for role.
func (d UserDetails) Merge(role Role, patch map[string]any) (UserDetails, error) {
	m := d.ToMap()
	for k, v := range patch {
		m[k] = v
	}
	return DetailsFromMap(role, m)
}

// DetailsFromMap parses the flat stored form for the given role.
func DetailsFromMap(role Role, m map[string]any) (UserDetails, error) {
	var d UserDetails
	subjects := m[DetailsSubjects]
	switch role {
	case RoleResearcher:
		s, err := stringsOf(DetailsSubjects, subjects)
		if err != nil {
			return UserDetails{}, err
		}
		d.Profile = TutorDetails{Subjects: s}
	case RoleParticipant:
		s, err := stringsOf(DetailsSubjects, subjects)
		if err != nil {
			return UserDetails{}, err
		}
		d.Profile = StudentDetails{Subjects: s}
	case RoleAdmin:
		d.Profile = AdminDetails{}
	default:
		return UserDetails{}, fmt.Errorf("details for role %s: %w", role, errs.ErrBadRequest)
	}

	if raw, ok := m[DetailsNotifications]; ok && raw != nil {
		ss, err := stringsOf(DetailsNotifications, raw)
		if err != nil {
			return UserDetails{}, err
		}
		d.Notifications = make([]uuid.UUID, 0, len(ss))
		for _, s := range ss {
			id, err := uuid.FromString(s)
			if err != nil {
				return UserDetails{}, fmt.Errorf("notification %q: %w", s, errs.ErrBadRequest)
			}
			d.Notifications = append(d.Notifications, id)
		}
	}

	for k, v := range m {
		switch k {
		case DetailsNotifications, DetailsPassword:
			continue
		case DetailsSubjects:
			if role != RoleAdmin {
				continue
			}
		}
		if d.Extra == nil {
			d.Extra = map[string]any{}
		}
		d.Extra[k] = v
	}
	return d, nil
}

// SubjectsOf extracts a "subjects" list from a details map, ignoring malformed values.
func SubjectsOf(m map[string]any) []string {
	s, _ := stringsOf(DetailsSubjects, m[DetailsSubjects])
	return s
}

func stringsOf(key string, v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return slices.Clone(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%s: non-string element: %w", key, errs.ErrBadRequest)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		// single subject sent as a scalar
		return []string{t}, nil
	default:
		return nil, fmt.Errorf("%s: unexpected %T: %w", key, v, errs.ErrBadRequest)
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
