package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/repository/memory"
)

type recordedHelp struct {
	actor model.Actor
	req   model.NewObject
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []recordedHelp
}

var _ HelpRequestNotifier = (*recordingNotifier)(nil)

func (r *recordingNotifier) NotifyHelpRequest(_ context.Context, actor model.Actor, req model.NewObject) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedHelp{actor: actor, req: req})
}

type graphEnv struct {
	store   *memory.Store
	users   *memory.UserRepo
	objects *memory.ObjectRepo
	edges   *memory.EdgeRepo
	help    *recordingNotifier
	graph   *ObjectServiceImpl
	query   *QueryServiceImpl

	admin, tutor, student model.Actor
}

func newGraphEnv(t *testing.T) *graphEnv {
	t.Helper()
	s, err := memory.New()
	require.NoError(t, err)
	env := &graphEnv{
		store:   s,
		users:   memory.NewUserRepo(s),
		objects: memory.NewObjectRepo(s),
		edges:   memory.NewEdgeRepo(s),
		help:    &recordingNotifier{},
	}
	env.graph = NewObjectService(env.users, env.objects, env.edges, env.help, zaptest.NewLogger(t))
	env.query = NewQueryService(env.objects, env.graph)

	env.admin = env.addUser(t, "admin@x", model.RoleAdmin)
	env.tutor = env.addUser(t, "tutor@x", model.RoleResearcher)
	env.student = env.addUser(t, "student@x", model.RoleParticipant)
	return env
}

func (e *graphEnv) addUser(t *testing.T, email string, role model.Role) model.Actor {
	t.Helper()
	d, err := model.DetailsFromMap(role, map[string]any{})
	require.NoError(t, err)
	u := &model.User{Identity: model.Identity{Email: email, Platform: "web"}, Role: role, Username: email, Details: d}
	require.NoError(t, e.users.Create(context.Background(), u))
	return model.Actor{ID: u.ID, Role: role}
}

func (e *graphEnv) create(t *testing.T, typ, alias string, active bool) *model.Object {
	t.Helper()
	o, err := e.graph.Create(context.Background(), e.admin, model.NewObject{
		Type:    typ,
		Alias:   alias,
		Active:  &active,
		Details: map[string]any{},
	})
	require.NoError(t, err)
	return o
}

func ids(objs []*model.Object) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.ID)
	}
	return out
}

func TestGraph_Create_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	yes := true

	tests := []struct {
		name string
		req  model.NewObject
		want error
	}{
		{name: "empty type", req: model.NewObject{Active: &yes, Details: map[string]any{}}, want: errs.ErrBadRequest},
		{name: "active unset", req: model.NewObject{Type: "post", Details: map[string]any{}}, want: errs.ErrBadRequest},
		{name: "nil details", req: model.NewObject{Type: "post", Active: &yes}, want: errs.ErrBadRequest},
		{name: "unknown creator", req: model.NewObject{Type: "post", Active: &yes, Details: map[string]any{}, CreatedBy: uuid.Must(uuid.NewV4())}, want: errs.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.graph.Create(ctx, env.tutor, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	o, err := env.graph.Create(ctx, env.tutor, model.NewObject{
		Type:     "course",
		Alias:    "algebra",
		Active:   &yes,
		Details:  map[string]any{"level": "1"},
		Location: &model.Location{Lat: 32.1, Lng: 34.8},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, o.ID)
	require.Equal(t, env.tutor.ID, o.CreatedBy)
	require.False(t, o.CreatedAt.IsZero())
	require.Equal(t, &model.Location{Lat: 32.1, Lng: 34.8}, o.Location)
}

func TestGraph_Create_InactiveByParticipantRaisesHelpRequest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	no := false

	req := model.NewObject{Type: "post", Alias: "need help", Active: &no, Details: map[string]any{"subjects": []any{"Math"}}}
	_, err := env.graph.Create(ctx, env.student, req)
	require.ErrorIs(t, err, errs.ErrForbidden)

	require.Len(t, env.help.calls, 1)
	require.Equal(t, env.student, env.help.calls[0].actor)
	require.Equal(t, []string{"Math"}, env.help.calls[0].req.Subjects())

	all, err := env.graph.List(ctx, env.admin)
	require.NoError(t, err)
	require.Empty(t, all, "rejected creation stores nothing")

	// staff may create inactive objects without raising anything
	_, err = env.graph.Create(ctx, env.tutor, req)
	require.NoError(t, err)
	require.Len(t, env.help.calls, 1)
}

func TestGraph_BindSymmetryAndUnbindReversal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	p := env.create(t, "course", "algebra", true)
	c := env.create(t, "lesson", "intro", true)

	require.NoError(t, env.graph.Bind(ctx, env.tutor, p.ID, c.ID))

	kids, err := env.graph.Children(ctx, env.student, p.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{c.ID}, ids(kids))
	parents, err := env.graph.Parents(ctx, env.student, c.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{p.ID}, ids(parents))

	require.NoError(t, env.graph.Unbind(ctx, env.tutor, p.ID, c.ID))
	kids, err = env.graph.Children(ctx, env.admin, p.ID)
	require.NoError(t, err)
	require.Empty(t, kids)
	parents, err = env.graph.Parents(ctx, env.admin, c.ID)
	require.NoError(t, err)
	require.Empty(t, parents)

	// unbinding a missing pair, even of unknown ids, is a no-op
	require.NoError(t, env.graph.Unbind(ctx, env.tutor, p.ID, c.ID))
	require.NoError(t, env.graph.Unbind(ctx, env.tutor, uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())))
}

func TestGraph_DuplicateBindAppendsEdge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	p := env.create(t, "course", "algebra", true)
	c := env.create(t, "lesson", "intro", true)

	require.NoError(t, env.graph.Bind(ctx, env.tutor, p.ID, c.ID))
	require.NoError(t, env.graph.Bind(ctx, env.tutor, p.ID, c.ID))

	kids, err := env.graph.Children(ctx, env.tutor, p.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{c.ID, c.ID}, ids(kids))

	require.NoError(t, env.graph.Unbind(ctx, env.tutor, p.ID, c.ID))
	kids, err = env.graph.Children(ctx, env.tutor, p.ID)
	require.NoError(t, err)
	require.Empty(t, kids, "unbind removes every duplicate")
}

func TestGraph_Bind_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	p := env.create(t, "course", "algebra", true)
	c := env.create(t, "lesson", "intro", true)

	require.ErrorIs(t, env.graph.Bind(ctx, env.student, p.ID, c.ID), errs.ErrForbidden)
	require.ErrorIs(t, env.graph.Unbind(ctx, env.student, p.ID, c.ID), errs.ErrForbidden)
	require.ErrorIs(t, env.graph.Bind(ctx, env.tutor, uuid.Must(uuid.NewV4()), c.ID), errs.ErrNotFound)
	require.ErrorIs(t, env.graph.Bind(ctx, env.tutor, p.ID, uuid.Must(uuid.NewV4())), errs.ErrNotFound)

	_, err := env.graph.Children(ctx, env.tutor, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = env.graph.Parents(ctx, env.tutor, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGraph_TenChildrenScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	parent := env.create(t, "course", "algebra", true)

	var all, active []uuid.UUID
	for i := 0; i < 10; i++ {
		isActive := i%2 == 0
		c := env.create(t, "lesson", fmt.Sprintf("lesson-%d", i), isActive)
		require.NoError(t, env.graph.Bind(ctx, env.admin, parent.ID, c.ID))
		all = append(all, c.ID)
		if isActive {
			active = append(active, c.ID)
		}
	}

	adminKids, err := env.graph.Children(ctx, env.admin, parent.ID)
	require.NoError(t, err)
	require.Equal(t, all, ids(adminKids))

	studentKids, err := env.graph.Children(ctx, env.student, parent.ID)
	require.NoError(t, err)
	require.Equal(t, active, ids(studentKids))
	for _, o := range studentKids {
		require.True(t, o.Active)
	}
}

func TestGraph_VisibilityMonotonic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	hidden := env.create(t, "post", "draft", false)
	shown := env.create(t, "post", "live", true)

	_, err := env.graph.Get(ctx, env.student, hidden.ID)
	require.ErrorIs(t, err, errs.ErrForbidden)
	for _, a := range []model.Actor{env.admin, env.tutor, env.student} {
		got, err := env.graph.Get(ctx, a, shown.ID)
		require.NoError(t, err)
		require.Equal(t, shown.ID, got.ID)
	}
	for _, a := range []model.Actor{env.admin, env.tutor} {
		_, err := env.graph.Get(ctx, a, hidden.ID)
		require.NoError(t, err)
	}

	_, err = env.graph.Get(ctx, env.admin, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestGraph_DanglingEdgesSkippedThenSwept(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	p := env.create(t, "course", "algebra", true)
	c := env.create(t, "lesson", "intro", true)
	require.NoError(t, env.graph.Bind(ctx, env.tutor, p.ID, c.ID))

	ghost := uuid.Must(uuid.NewV4())
	_, err := env.edges.Add(ctx, p.ID, ghost)
	require.NoError(t, err)

	kids, err := env.graph.Children(ctx, env.admin, p.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{c.ID}, ids(kids))

	n, err := NewEdgeSweeper(env.edges, time.Hour, zaptest.NewLogger(t)).SweepOnce(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	raw, err := env.edges.Children(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{c.ID}, raw)
}

func TestGraph_Update(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	o, err := env.graph.Create(ctx, env.admin, model.NewObject{
		Type:    "course",
		Alias:   "algebra",
		Active:  ptr(true),
		Details: map[string]any{"level": "1", "room": "A"},
	})
	require.NoError(t, err)

	require.ErrorIs(t, env.graph.Update(ctx, env.student, o.ID, model.ObjectPatch{Alias: ptr("x")}), errs.ErrForbidden)
	require.ErrorIs(t, env.graph.Update(ctx, env.tutor, uuid.Must(uuid.NewV4()), model.ObjectPatch{}), errs.ErrNotFound)

	rejected := []model.ObjectPatch{
		{Alias: ptr("")},
		{Type: ptr("")},
		{CreationTimestamp: ptr(time.Now().Add(-time.Hour)), Alias: ptr("sneaky")},
	}
	for _, p := range rejected {
		require.ErrorIs(t, env.graph.Update(ctx, env.tutor, o.ID, p), errs.ErrForbidden)
	}
	unchanged, err := env.graph.Get(ctx, env.admin, o.ID)
	require.NoError(t, err)
	require.Equal(t, "algebra", unchanged.Alias)
	require.Equal(t, "course", unchanged.Type)
	require.Equal(t, o.CreatedAt, unchanged.CreatedAt)

	require.NoError(t, env.graph.Update(ctx, env.tutor, o.ID, model.ObjectPatch{
		Alias:    ptr("linear algebra"),
		Active:   ptr(false),
		Location: &model.LocationPatch{Lat: ptr(31.5)},
		Details:  map[string]any{"room": "B", "seats": 20},
	}))
	got, err := env.graph.Get(ctx, env.admin, o.ID)
	require.NoError(t, err)
	require.Equal(t, "linear algebra", got.Alias)
	require.False(t, got.Active)
	require.Equal(t, &model.Location{Lat: 31.5}, got.Location)
	require.Equal(t, map[string]any{"level": "1", "room": "B", "seats": 20}, got.Details)
	require.Equal(t, o.CreatedAt, got.CreatedAt)

	require.NoError(t, env.graph.Update(ctx, env.tutor, o.ID, model.ObjectPatch{Location: &model.LocationPatch{Lng: ptr(35.0)}}))
	got, err = env.graph.Get(ctx, env.admin, o.ID)
	require.NoError(t, err)
	require.Equal(t, &model.Location{Lat: 31.5, Lng: 35.0}, got.Location)

	require.NoError(t, env.graph.Update(ctx, env.tutor, o.ID, model.ObjectPatch{Alias: ptr("  "), Type: ptr(" ")}))
	got, err = env.graph.Get(ctx, env.admin, o.ID)
	require.NoError(t, err)
	require.Equal(t, "  ", got.Alias)
	require.Equal(t, " ", got.Type)
}

func TestGraph_ListAndDeleteAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	env.create(t, "course", "a", true)
	env.create(t, "course", "b", false)

	_, err := env.graph.List(ctx, env.tutor)
	require.ErrorIs(t, err, errs.ErrForbidden)
	all, err := env.graph.List(ctx, env.admin)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = env.graph.DeleteAll(ctx, env.tutor)
	require.ErrorIs(t, err, errs.ErrForbidden)
	n, err := env.graph.DeleteAll(ctx, env.admin)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestQuery_ByTypeAndDistinct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	hidden := env.create(t, "course", "a", false)
	shown := env.create(t, "course", "b", true)
	env.create(t, "post", "c", true)

	got, err := env.query.ByType(ctx, env.admin, "course")
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{hidden.ID, shown.ID}, ids(got))

	got, err = env.query.ByType(ctx, env.student, "course")
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{shown.ID}, ids(got))

	first, err := env.query.DistinctByType(ctx, env.student, "course")
	require.NoError(t, err)
	require.Equal(t, shown.ID, first.ID)
	first, err = env.query.DistinctByType(ctx, env.admin, "course")
	require.NoError(t, err)
	require.Equal(t, hidden.ID, first.ID)

	_, err = env.query.DistinctByType(ctx, env.admin, "quiz")
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = env.query.ByType(ctx, env.admin, "")
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestQuery_TypeAndAliasFilterIsSubset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newGraphEnv(t)
	hub := env.create(t, "course", "hub", true)

	kinds := []struct {
		typ, alias string
		active     bool
	}{
		{"lesson", "intro", true},
		{"lesson", "intro", false},
		{"lesson", "outro", true},
		{"quiz", "intro", true},
	}
	for _, k := range kinds {
		c := env.create(t, k.typ, k.alias, k.active)
		require.NoError(t, env.graph.Bind(ctx, env.admin, hub.ID, c.ID))
		require.NoError(t, env.graph.Bind(ctx, env.admin, c.ID, hub.ID))
	}

	for _, a := range []model.Actor{env.admin, env.student} {
		kids, err := env.graph.Children(ctx, a, hub.ID)
		require.NoError(t, err)
		filtered, err := env.query.ChildrenByTypeAndAlias(ctx, a, hub.ID, "lesson", "intro")
		require.NoError(t, err)
		require.Subset(t, ids(kids), ids(filtered))
		for _, o := range filtered {
			require.Equal(t, "lesson", o.Type)
			require.Equal(t, "intro", o.Alias)
		}

		parents, err := env.graph.Parents(ctx, a, hub.ID)
		require.NoError(t, err)
		pf, err := env.query.ParentsByTypeAndAlias(ctx, a, hub.ID, "lesson", "intro")
		require.NoError(t, err)
		require.Subset(t, ids(parents), ids(pf))
		require.Equal(t, ids(filtered), ids(pf))
	}

	adminF, err := env.query.ChildrenByTypeAndAlias(ctx, env.admin, hub.ID, "lesson", "intro")
	require.NoError(t, err)
	require.Len(t, adminF, 2)
	studentF, err := env.query.ChildrenByTypeAndAlias(ctx, env.student, hub.ID, "lesson", "intro")
	require.NoError(t, err)
	require.Len(t, studentF, 1)

	_, err = env.query.ChildrenByTypeAndAlias(ctx, env.admin, hub.ID, "", "intro")
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func ptr[T any](v T) *T { return &v }
