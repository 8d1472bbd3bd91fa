package service

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/policy"
	"github.com/tamir303/Afekaton2024/internal/repository"
)

// ObjectService manages objects and the parent/child graph between them.
type ObjectService interface {
	// Create validates and stores a new object. An inactive object requested by a
	// role that may not create one is reported as a help request and rejected.
	Create(ctx context.Context, actor model.Actor, req model.NewObject) (*model.Object, error)
	// Update applies a partial update.
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, patch model.ObjectPatch) error
	// Get returns one object the actor may see.
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Object, error)
	// List returns every object (administrators only).
	List(ctx context.Context, actor model.Actor) ([]*model.Object, error)
	// Bind records parentID -> childID.
	Bind(ctx context.Context, actor model.Actor, parentID, childID uuid.UUID) error
	// Unbind removes every parentID -> childID record.
	Unbind(ctx context.Context, actor model.Actor, parentID, childID uuid.UUID) error
	// Children returns the visible children of parentID in bind order.
	Children(ctx context.Context, actor model.Actor, parentID uuid.UUID) ([]*model.Object, error)
	// Parents returns the visible parents of childID in bind order.
	Parents(ctx context.Context, actor model.Actor, childID uuid.UUID) ([]*model.Object, error)
	// DeleteAll removes every object and returns how many were removed.
	DeleteAll(ctx context.Context, actor model.Actor) (int64, error)
}

type ObjectServiceImpl struct {
	users   repository.UserRepository
	objects repository.ObjectRepository
	edges   repository.EdgeRepository
	help    HelpRequestNotifier
	log     *zap.Logger
}

// NewObjectService constructs ObjectService. help may be nil.
func NewObjectService(
	users repository.UserRepository,
	objects repository.ObjectRepository,
	edges repository.EdgeRepository,
	help HelpRequestNotifier,
	log *zap.Logger,
) *ObjectServiceImpl {
	return &ObjectServiceImpl{users: users, objects: objects, edges: edges, help: help, log: orNop(log)}
}

// Create stores a new object after validation.
// Rules:
// - Type non-empty, Active set, Details non-nil
// - CreatedBy defaults to the actor and must exist
// - inactive objects need ActionCreateInactive; otherwise a help request is raised
func (s *ObjectServiceImpl) Create(ctx context.Context, actor model.Actor, req model.NewObject) (*model.Object, error) {
	if req.Type == "" || req.Active == nil || req.Details == nil {
		return nil, fmt.Errorf("validation: type, active and details are required: %w", errs.ErrBadRequest)
	}
	creator := req.CreatedBy
	if creator == uuid.Nil {
		creator = actor.ID
	}
	if _, err := s.users.GetByID(ctx, creator); err != nil {
		return nil, fmt.Errorf("creator %s: %w", creator, err)
	}

	if !*req.Active && !policy.CanCreateInactive(actor.Role) {
		if s.help != nil {
			s.help.NotifyHelpRequest(ctx, actor, req)
		}
		return nil, authorize(s.log, actor, policy.ActionCreateInactive)
	}

	o := &model.Object{
		Type:      req.Type,
		Alias:     req.Alias,
		Active:    *req.Active,
		CreatedBy: creator,
		Details:   maps.Clone(req.Details),
	}
	if req.Location != nil {
		loc := *req.Location
		o.Location = &loc
	}
	if err := s.objects.Create(ctx, o); err != nil {
		return nil, err
	}
	s.log.Info("object created",
		zap.String("id", o.ID.String()),
		zap.String("type", o.Type),
		zap.String("by", actor.ID.String()),
	)
	return o, nil
}

// Update patches an existing object. Any rejection leaves the stored object as it was.
func (s *ObjectServiceImpl) Update(ctx context.Context, actor model.Actor, id uuid.UUID, patch model.ObjectPatch) error {
	if err := authorize(s.log, actor, policy.ActionMutateGraph); err != nil {
		return err
	}
	o, err := s.objects.Get(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case patch.Type != nil && *patch.Type == "":
		return fmt.Errorf("update object %s: empty type: %w", id, errs.ErrForbidden)
	case patch.Alias != nil && *patch.Alias == "":
		return fmt.Errorf("update object %s: empty alias: %w", id, errs.ErrForbidden)
	case patch.CreationTimestamp != nil:
		return fmt.Errorf("update object %s: creation timestamp is immutable: %w", id, errs.ErrForbidden)
	}

	if patch.Type != nil {
		o.Type = *patch.Type
	}
	if patch.Alias != nil {
		o.Alias = *patch.Alias
	}
	if patch.Active != nil {
		o.Active = *patch.Active
	}
	if patch.Location != nil {
		if o.Location == nil {
			o.Location = &model.Location{}
		}
		if patch.Location.Lat != nil {
			o.Location.Lat = *patch.Location.Lat
		}
		if patch.Location.Lng != nil {
			o.Location.Lng = *patch.Location.Lng
		}
	}
	if len(patch.Details) > 0 {
		if o.Details == nil {
			o.Details = map[string]any{}
		}
		maps.Copy(o.Details, patch.Details)
	}
	return s.objects.Save(ctx, o)
}

// Get returns the object when the actor may read it.
func (s *ObjectServiceImpl) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Object, error) {
	o, err := s.objects.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanRead(actor.Role, o) {
		return nil, authorize(s.log, actor, policy.ActionReadInactive)
	}
	return o, nil
}

// List returns all objects in creation order.
func (s *ObjectServiceImpl) List(ctx context.Context, actor model.Actor) ([]*model.Object, error) {
	if err := authorize(s.log, actor, policy.ActionListAll); err != nil {
		return nil, err
	}
	return s.objects.List(ctx, repository.ObjectFilter{})
}

// Bind resolves both endpoints and appends one edge record.
func (s *ObjectServiceImpl) Bind(ctx context.Context, actor model.Actor, parentID, childID uuid.UUID) error {
	if err := authorize(s.log, actor, policy.ActionMutateGraph); err != nil {
		return err
	}
	parent, err := s.objects.Get(ctx, parentID)
	if err != nil {
		return fmt.Errorf("parent %s: %w", parentID, err)
	}
	child, err := s.objects.Get(ctx, childID)
	if err != nil {
		return fmt.Errorf("child %s: %w", childID, err)
	}
	if !policy.CanRead(actor.Role, parent) || !policy.CanRead(actor.Role, child) {
		return authorize(s.log, actor, policy.ActionReadInactive)
	}
	if _, err := s.edges.Add(ctx, parentID, childID); err != nil {
		return err
	}
	s.log.Debug("bound", zap.String("parent", parentID.String()), zap.String("child", childID.String()))
	return nil
}

// Unbind removes the pair. A missing edge is not an error.
func (s *ObjectServiceImpl) Unbind(ctx context.Context, actor model.Actor, parentID, childID uuid.UUID) error {
	if err := authorize(s.log, actor, policy.ActionMutateGraph); err != nil {
		return err
	}
	n, err := s.edges.Remove(ctx, parentID, childID)
	if err != nil {
		return err
	}
	s.log.Debug("unbound",
		zap.String("parent", parentID.String()),
		zap.String("child", childID.String()),
		zap.Int64("edges", n),
	)
	return nil
}

// Children lists the anchor's visible children.
func (s *ObjectServiceImpl) Children(ctx context.Context, actor model.Actor, parentID uuid.UUID) ([]*model.Object, error) {
	anchor, err := s.objects.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, actor, anchor.Children)
}

// Parents lists the anchor's visible parents.
func (s *ObjectServiceImpl) Parents(ctx context.Context, actor model.Actor, childID uuid.UUID) ([]*model.Object, error) {
	anchor, err := s.objects.Get(ctx, childID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, actor, anchor.Parents)
}

// resolve loads ids in order, skipping dangling references and objects the actor may not read.
func (s *ObjectServiceImpl) resolve(ctx context.Context, actor model.Actor, ids []uuid.UUID) ([]*model.Object, error) {
	out := make([]*model.Object, 0, len(ids))
	for _, id := range ids {
		o, err := s.objects.Get(ctx, id)
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Debug("dangling edge", zap.String("id", id.String()))
			continue
		}
		if err != nil {
			return nil, err
		}
		if policy.CanRead(actor.Role, o) {
			out = append(out, o)
		}
	}
	return out, nil
}

// DeleteAll removes every object. Edges are pruned later by the sweeper.
func (s *ObjectServiceImpl) DeleteAll(ctx context.Context, actor model.Actor) (int64, error) {
	if err := authorize(s.log, actor, policy.ActionBulkDelete); err != nil {
		return 0, err
	}
	n, err := s.objects.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("objects deleted", zap.Int64("count", n), zap.String("by", actor.ID.String()))
	return n, nil
}
