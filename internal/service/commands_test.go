package service

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/notify"
	"github.com/tamir303/Afekaton2024/internal/repository/memory"
)

type fanoutCall struct {
	requester uuid.UUID
	role      model.Role
	subjects  []string
}

type fakeFanout struct{ calls []fanoutCall }

var _ Fanout = (*fakeFanout)(nil)

func (f *fakeFanout) Dispatch(requester uuid.UUID, role model.Role, subjects []string) {
	f.calls = append(f.calls, fanoutCall{requester, role, subjects})
}

func newCommandEnv(t *testing.T) (*CommandServiceImpl, *memory.CommandRepo, *memory.ObjectRepo, *fakeFanout) {
	t.Helper()
	s, err := memory.New()
	require.NoError(t, err)
	cmds, objects := memory.NewCommandRepo(s), memory.NewObjectRepo(s)
	fan := &fakeFanout{}
	return NewCommandService(cmds, objects, fan, zaptest.NewLogger(t)), cmds, objects, fan
}

func TestCommands_Invoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, objects, fan := newCommandEnv(t)
	tutor := model.Actor{ID: uuid.Must(uuid.NewV4()), Role: model.RoleResearcher}
	student := model.Actor{ID: uuid.Must(uuid.NewV4()), Role: model.RoleParticipant}

	_, err := svc.Invoke(ctx, student, model.NewCommand{Name: model.CommandGetRelatedProducers})
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = svc.Invoke(ctx, tutor, model.NewCommand{Name: "Nope"})
	require.ErrorIs(t, err, errs.ErrBadRequest)

	cmd, err := svc.Invoke(ctx, tutor, model.NewCommand{
		Name:       model.CommandGetRelatedProducers,
		Attributes: map[string]any{"subjects": []any{"Math"}},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, cmd.ID)
	require.Equal(t, tutor.ID, cmd.InvokedBy)
	require.Equal(t, []fanoutCall{{tutor.ID, model.RoleResearcher, []string{"Math"}}}, fan.calls)

	post := &model.Object{Type: "post", Active: true, Details: map[string]any{"subjects": []any{"Physics"}}}
	require.NoError(t, objects.Create(ctx, post))
	_, err = svc.Invoke(ctx, tutor, model.NewCommand{Name: model.CommandGetRelatedProducers, TargetObject: &post.ID})
	require.NoError(t, err)
	require.Equal(t, []string{"Physics"}, fan.calls[1].subjects)

	_, err = svc.Invoke(ctx, tutor, model.NewCommand{Name: model.CommandGetRelatedProducers})
	require.ErrorIs(t, err, errs.ErrBadRequest, "no subjects anywhere")
}

func TestCommands_CustomHandlerAndLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _, _ := newCommandEnv(t)
	admin := model.Actor{ID: uuid.Must(uuid.NewV4()), Role: model.RoleAdmin}
	tutor := model.Actor{ID: uuid.Must(uuid.NewV4()), Role: model.RoleResearcher}

	boom := errors.New("boom")
	svc.Register("Fail", func(context.Context, model.Actor, *model.Command) error { return boom })
	_, err := svc.Invoke(ctx, admin, model.NewCommand{Name: "Fail"})
	require.ErrorIs(t, err, boom)

	_, err = svc.List(ctx, tutor)
	require.ErrorIs(t, err, errs.ErrForbidden)
	log, err := svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, log, 1, "failed commands are still recorded")
	require.Equal(t, "Fail", log[0].Name)

	_, err = svc.DeleteAll(ctx, tutor)
	require.ErrorIs(t, err, errs.ErrForbidden)
	n, err := svc.DeleteAll(ctx, admin)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCommands_NotifyHelpRequestRecordsAndDispatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, cmds, _, fan := newCommandEnv(t)
	student := model.Actor{ID: uuid.Must(uuid.NewV4()), Role: model.RoleParticipant}

	svc.NotifyHelpRequest(ctx, student, model.NewObject{
		Type:    "post",
		Alias:   "stuck",
		Details: map[string]any{"subjects": []any{"Math"}},
	})

	log, err := cmds.List(ctx)
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Equal(t, model.CommandGetRelatedProducers, log[0].Name)
	require.Equal(t, student.ID, log[0].InvokedBy)
	require.Equal(t, []string{"Math"}, model.SubjectsOf(log[0].Attributes))
	require.Equal(t, []fanoutCall{{student.ID, model.RoleParticipant, []string{"Math"}}}, fan.calls)
}

// End to end: a participant's inactive post reaches the Math tutor only.
func TestHelpRequestFanOut_MathTutorNotified(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := memory.New()
	require.NoError(t, err)
	users, objects, edges, cmds := memory.NewUserRepo(s), memory.NewObjectRepo(s), memory.NewEdgeRepo(s), memory.NewCommandRepo(s)

	register := func(email string, role model.Role, subject string) *model.User {
		d, err := model.DetailsFromMap(role, map[string]any{"subjects": []any{subject}})
		require.NoError(t, err)
		u := &model.User{Identity: model.Identity{Email: email, Platform: "web"}, Role: role, Username: email, Details: d}
		require.NoError(t, users.Create(ctx, u))
		return u
	}
	mathTutor := register("math@x", model.RoleResearcher, "Math")
	chemTutor := register("chem@x", model.RoleResearcher, "Chemistry")
	student := register("student@x", model.RoleParticipant, "Math")

	log := zaptest.NewLogger(t)
	dispatcher := notify.New(users, log, notify.Options{PageSize: 2})
	commands := NewCommandService(cmds, objects, dispatcher, log)
	graph := NewObjectService(users, objects, edges, commands, log)

	_, err = graph.Create(ctx, model.Actor{ID: student.ID, Role: student.Role}, model.NewObject{
		Type:    "post",
		Alias:   "help with equations",
		Active:  ptr(false),
		Details: map[string]any{"subjects": []any{"Math"}},
	})
	require.ErrorIs(t, err, errs.ErrForbidden)
	dispatcher.Wait()

	got, err := users.GetByID(ctx, mathTutor.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{student.ID}, got.Details.Notifications)

	got, err = users.GetByID(ctx, chemTutor.ID)
	require.NoError(t, err)
	require.Empty(t, got.Details.Notifications)
}
