package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/policy"
	"github.com/tamir303/Afekaton2024/internal/repository"
)

// QueryService answers type and alias lookups over the graph.
type QueryService interface {
	// ByType returns visible objects of the given type in creation order.
	ByType(ctx context.Context, actor model.Actor, typ string) ([]*model.Object, error)
	// DistinctByType returns the first visible object of the given type.
	DistinctByType(ctx context.Context, actor model.Actor, typ string) (*model.Object, error)
	// ChildrenByTypeAndAlias filters Children on (type, alias).
	ChildrenByTypeAndAlias(ctx context.Context, actor model.Actor, parentID uuid.UUID, typ, alias string) ([]*model.Object, error)
	// ParentsByTypeAndAlias filters Parents on (type, alias).
	ParentsByTypeAndAlias(ctx context.Context, actor model.Actor, childID uuid.UUID, typ, alias string) ([]*model.Object, error)
}

type QueryServiceImpl struct {
	objects repository.ObjectRepository
	graph   ObjectService
}

// NewQueryService constructs QueryService over the object store and graph.
func NewQueryService(objects repository.ObjectRepository, graph ObjectService) *QueryServiceImpl {
	return &QueryServiceImpl{objects: objects, graph: graph}
}

// ByType scans by type, then applies the visibility filter.
func (s *QueryServiceImpl) ByType(ctx context.Context, actor model.Actor, typ string) ([]*model.Object, error) {
	if err := requireType(typ); err != nil {
		return nil, err
	}
	objs, err := s.objects.List(ctx, repository.ObjectFilter{Type: typ})
	if err != nil {
		return nil, err
	}
	return policy.Filter(actor.Role, objs), nil
}

// DistinctByType returns ErrNotFound when no object of typ is visible.
func (s *QueryServiceImpl) DistinctByType(ctx context.Context, actor model.Actor, typ string) (*model.Object, error) {
	objs, err := s.ByType(ctx, actor, typ)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("object of type %q: %w", typ, errs.ErrNotFound)
	}
	return objs[0], nil
}

func (s *QueryServiceImpl) ChildrenByTypeAndAlias(ctx context.Context, actor model.Actor, parentID uuid.UUID, typ, alias string) ([]*model.Object, error) {
	if err := requireType(typ); err != nil {
		return nil, err
	}
	objs, err := s.graph.Children(ctx, actor, parentID)
	if err != nil {
		return nil, err
	}
	return byTypeAndAlias(objs, typ, alias), nil
}

func (s *QueryServiceImpl) ParentsByTypeAndAlias(ctx context.Context, actor model.Actor, childID uuid.UUID, typ, alias string) ([]*model.Object, error) {
	if err := requireType(typ); err != nil {
		return nil, err
	}
	objs, err := s.graph.Parents(ctx, actor, childID)
	if err != nil {
		return nil, err
	}
	return byTypeAndAlias(objs, typ, alias), nil
}

func requireType(typ string) error {
	if strings.TrimSpace(typ) == "" {
		return fmt.Errorf("validation: empty type: %w", errs.ErrBadRequest)
	}
	return nil
}

func byTypeAndAlias(objs []*model.Object, typ, alias string) []*model.Object {
	out := make([]*model.Object, 0, len(objs))
	for _, o := range objs {
		if o.Type == typ && o.Alias == alias {
			out = append(out, o)
		}
	}
	return out
}
