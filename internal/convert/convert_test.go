package convert

import (
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
)

func mustUUID(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.FromString(s)
	if err != nil {
		t.Fatalf("bad uuid %q: %v", s, err)
	}
	return id
}

func TestFromObject(t *testing.T) {
	t.Parallel()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	child := mustUUID(t, "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11")
	o := &model.Object{
		ID:        mustUUID(t, "0b7f2f0e-3b1e-4c35-9a55-1f2d8f0c9e01"),
		Type:      "course",
		Alias:     "algebra",
		Active:    true,
		Location:  &model.Location{Lat: 1.5, Lng: 2.5},
		Children:  []uuid.UUID{child},
		CreatedAt: created,
	}

	got := FromObject(o)
	require.Equal(t, o.ID.String(), got.ID)
	require.True(t, *got.Active)
	require.Equal(t, &created, got.CreationTimestamp)
	require.Nil(t, got.ModificationTimestamp)
	require.Equal(t, []string{child.String()}, got.Children)
	require.Nil(t, got.Parents)
	require.NotNil(t, got.Details)
	require.Equal(t, 1.5, *got.Location.Lat)
}

func TestToNewObject(t *testing.T) {
	t.Parallel()
	yes := true
	lat, lng := 1.0, 2.0

	req, err := ToNewObject(Object{
		Type:      "post",
		Active:    &yes,
		CreatedBy: "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11",
		Details:   map[string]any{"subjects": []any{"Math"}},
		Location:  &Location{Lat: &lat, Lng: &lng},
	})
	require.NoError(t, err)
	require.Equal(t, "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11", req.CreatedBy.String())
	require.Equal(t, &model.Location{Lat: 1, Lng: 2}, req.Location)
	require.Equal(t, []string{"Math"}, req.Subjects())

	_, err = ToNewObject(Object{CreatedBy: "nope"})
	require.ErrorIs(t, err, errs.ErrBadRequest)
	_, err = ToNewObject(Object{Location: &Location{Lat: &lat}})
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestToObjectPatch_LocationPartial(t *testing.T) {
	t.Parallel()
	lat := 3.0
	p := ToObjectPatch(ObjectPatch{Location: &Location{Lat: &lat}})
	require.Equal(t, &lat, p.Location.Lat)
	require.Nil(t, p.Location.Lng)
	require.Nil(t, ToObjectPatch(ObjectPatch{}).Location)
}

func TestFromUser_HidesCredentials(t *testing.T) {
	t.Parallel()
	d, err := model.DetailsFromMap(model.RoleResearcher, map[string]any{"subjects": []any{"Math"}})
	require.NoError(t, err)
	u := &model.User{
		ID:       mustUUID(t, "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11"),
		Identity: model.Identity{Email: "a@x", Platform: "web"},
		Role:     model.RoleResearcher,
		Details:  d,
		PwdHash:  []byte("secret"),
	}
	got := FromUser(u)
	require.Equal(t, "Researcher", got.Role)
	require.Equal(t, []any{"Math"}, got.Details["subjects"])

	s, err := ToStruct(got)
	require.NoError(t, err)
	require.NotContains(t, s.AsMap(), "pwdHash")
	require.NotContains(t, s.AsMap(), "password")
}

func TestToNewCommand(t *testing.T) {
	t.Parallel()
	c, err := ToNewCommand(Command{Command: "GetRelatedProducers", TargetObject: "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11"})
	require.NoError(t, err)
	require.Equal(t, "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11", c.TargetObject.String())

	c, err = ToNewCommand(Command{Command: "X"})
	require.NoError(t, err)
	require.Nil(t, c.TargetObject)

	_, err = ToNewCommand(Command{Command: "X", TargetObject: "zzz"})
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestStruct_ObjectRoundTrip(t *testing.T) {
	t.Parallel()
	yes := true
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Object{
		ID:                "0b7f2f0e-3b1e-4c35-9a55-1f2d8f0c9e01",
		Type:              "course",
		Active:            &yes,
		CreationTimestamp: &created,
		Details:           map[string]any{"seats": 20.0, "tags": []any{"a"}},
	}
	s, err := ToStruct(in)
	require.NoError(t, err)
	require.Equal(t, "course", s.Fields["type"].GetStringValue())
	require.True(t, s.Fields["active"].GetBoolValue())

	var out Object
	require.NoError(t, FromStruct(s, &out))
	require.Equal(t, in, out)
}

func TestStruct_Errors(t *testing.T) {
	t.Parallel()
	_, err := ToStruct([]Object{})
	require.Error(t, err, "lists must be wrapped in an envelope")

	s, err := structpb.NewStruct(map[string]any{"active": "yes"})
	require.NoError(t, err)
	var o Object
	require.ErrorIs(t, FromStruct(s, &o), errs.ErrBadRequest)

	var empty Object
	require.NoError(t, FromStruct(nil, &empty))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	err := Validate(Object{})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.ErrorIs(t, err, errs.ErrBadRequest)
	require.Equal(t, "required", ve.Fields["type"])
	require.Equal(t, "required", ve.Fields["active"])
	require.Equal(t, "required", ve.Fields["objectDetails"])

	yes := true
	require.NoError(t, Validate(Object{Type: "t", Active: &yes, Details: map[string]any{}}))

	err = Validate(ObjectID{InternalObjectID: "nope"})
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "uuid", ve.Fields["internalObjectId"])
	require.Contains(t, err.Error(), "internalObjectId: uuid")
}
