package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/policy"
	"github.com/tamir303/Afekaton2024/internal/repository"
)

// SubjectService manages the subject catalog.
type SubjectService interface {
	List(ctx context.Context) ([]*model.Subject, error)
	Add(ctx context.Context, actor model.Actor, s model.Subject) (*model.Subject, error)
}

type SubjectServiceImpl struct {
	subjects repository.SubjectRepository
	log      *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(subjects repository.SubjectRepository, log *zap.Logger) *SubjectServiceImpl {
	return &SubjectServiceImpl{subjects: subjects, log: orNop(log)}
}

// List is open to every caller.
func (s *SubjectServiceImpl) List(ctx context.Context) ([]*model.Subject, error) {
	return s.subjects.List(ctx)
}

// Add upserts by id; an existing subject is renamed.
func (s *SubjectServiceImpl) Add(ctx context.Context, actor model.Actor, sub model.Subject) (*model.Subject, error) {
	if err := authorize(s.log, actor, policy.ActionManageSubjects); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sub.ID) == "" || strings.TrimSpace(sub.Name) == "" {
		return nil, fmt.Errorf("validation: subject id and name are required: %w", errs.ErrBadRequest)
	}
	if err := s.subjects.Upsert(ctx, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
