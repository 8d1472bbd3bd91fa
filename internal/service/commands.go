package service

import (
	"context"
	"fmt"
	"maps"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/policy"
	"github.com/tamir303/Afekaton2024/internal/repository"
)

// Fanout starts a background notification of related users.
type Fanout interface {
	Dispatch(requester uuid.UUID, requesterRole model.Role, subjects []string)
}

// CommandHandler runs a persisted command on behalf of actor.
type CommandHandler func(ctx context.Context, actor model.Actor, cmd *model.Command) error

// CommandService keeps the command log and runs registered handlers.
type CommandService interface {
	// Invoke records the command and runs its handler.
	Invoke(ctx context.Context, actor model.Actor, req model.NewCommand) (*model.Command, error)
	// List returns the command log (administrators only).
	List(ctx context.Context, actor model.Actor) ([]*model.Command, error)
	// DeleteAll clears the command log (administrators only).
	DeleteAll(ctx context.Context, actor model.Actor) (int64, error)
}

type CommandServiceImpl struct {
	commands repository.CommandRepository
	objects  repository.ObjectRepository
	fanout   Fanout
	handlers map[string]CommandHandler
	log      *zap.Logger
}

// NewCommandService constructs CommandService with the built-in handlers registered.
func NewCommandService(
	commands repository.CommandRepository,
	objects repository.ObjectRepository,
	fanout Fanout,
	log *zap.Logger,
) *CommandServiceImpl {
	s := &CommandServiceImpl{
		commands: commands,
		objects:  objects,
		fanout:   fanout,
		handlers: map[string]CommandHandler{},
		log:      orNop(log),
	}
	s.Register(model.CommandGetRelatedProducers, s.relatedProducers)
	return s
}

// Register adds or replaces the handler for name.
func (s *CommandServiceImpl) Register(name string, h CommandHandler) { s.handlers[name] = h }

// Invoke persists the command before running it, so a failing handler still leaves a record.
func (s *CommandServiceImpl) Invoke(ctx context.Context, actor model.Actor, req model.NewCommand) (*model.Command, error) {
	if err := authorize(s.log, actor, policy.ActionInvokeCommands); err != nil {
		return nil, err
	}
	h, ok := s.handlers[req.Name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q: %w", req.Name, errs.ErrBadRequest)
	}
	cmd := &model.Command{
		Name:         req.Name,
		TargetObject: req.TargetObject,
		InvokedBy:    actor.ID,
		Attributes:   maps.Clone(req.Attributes),
	}
	if cmd.Attributes == nil {
		cmd.Attributes = map[string]any{}
	}
	if err := s.commands.Create(ctx, cmd); err != nil {
		return nil, err
	}
	if err := h(ctx, actor, cmd); err != nil {
		return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
	}
	return cmd, nil
}

func (s *CommandServiceImpl) List(ctx context.Context, actor model.Actor) ([]*model.Command, error) {
	if err := authorize(s.log, actor, policy.ActionReadCommands); err != nil {
		return nil, err
	}
	return s.commands.List(ctx)
}

func (s *CommandServiceImpl) DeleteAll(ctx context.Context, actor model.Actor) (int64, error) {
	if err := authorize(s.log, actor, policy.ActionBulkDelete); err != nil {
		return 0, err
	}
	return s.commands.DeleteAll(ctx)
}

// NotifyHelpRequest records a GetRelatedProducers command for the actor and
// starts the fan-out. It bypasses the invoke policy: participants cannot
// invoke commands themselves.
func (s *CommandServiceImpl) NotifyHelpRequest(ctx context.Context, actor model.Actor, req model.NewObject) {
	subjects := req.Subjects()
	cmd := &model.Command{
		Name:      model.CommandGetRelatedProducers,
		InvokedBy: actor.ID,
		Attributes: map[string]any{
			model.DetailsSubjects: toAny(subjects),
			"type":                req.Type,
			"alias":               req.Alias,
		},
	}
	if err := s.commands.Create(ctx, cmd); err != nil {
		s.log.Error("record help request", zap.String("actor", actor.ID.String()), zap.Error(err))
	}
	s.fanout.Dispatch(actor.ID, actor.Role, subjects)
}

// relatedProducers takes subjects from the attributes, falling back to the target object's details.
func (s *CommandServiceImpl) relatedProducers(ctx context.Context, actor model.Actor, cmd *model.Command) error {
	subjects := model.SubjectsOf(cmd.Attributes)
	if len(subjects) == 0 && cmd.TargetObject != nil {
		o, err := s.objects.Get(ctx, *cmd.TargetObject)
		if err != nil {
			return err
		}
		subjects = model.SubjectsOf(o.Details)
	}
	if len(subjects) == 0 {
		return fmt.Errorf("no subjects: %w", errs.ErrBadRequest)
	}
	s.fanout.Dispatch(cmd.InvokedBy, actor.Role, subjects)
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}
