package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/tamir303/Afekaton2024/internal/crypto"
	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/limiter"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/policy"
	"github.com/tamir303/Afekaton2024/internal/repository"
	"github.com/tamir303/Afekaton2024/internal/token"
)

// UserService defines registration, authentication and user administration.
type UserService interface {
	// Register creates a user with a hashed password.
	Register(ctx context.Context, req model.NewUser) (*model.User, error)
	// Login applies rate limiting, checks credentials and issues an access token.
	Login(ctx context.Context, id model.Identity, password, ip string) (model.Tokens, model.User, error)
	// Resolve maps an identity to an actor without credentials.
	Resolve(ctx context.Context, id model.Identity) (model.Actor, error)
	// Get returns a user; callers see themselves, administrators see everyone.
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.User, error)
	// Update renames a user and merges details shallowly.
	Update(ctx context.Context, actor model.Actor, id uuid.UUID, patch model.UserPatch) (*model.User, error)
	// List returns every user (administrators only).
	List(ctx context.Context, actor model.Actor) ([]*model.User, error)
	// DeleteAll removes every user (administrators only).
	DeleteAll(ctx context.Context, actor model.Actor) (int64, error)
}

type UserServiceImpl struct {
	users  repository.UserRepository
	hasher *pkgcrypto.Hasher
	tokens *token.Manager
	lim    limiter.Limiter
	log    *zap.Logger
}

// NewUserService constructs UserService with required dependencies.
func NewUserService(
	users repository.UserRepository,
	hasher *pkgcrypto.Hasher,
	tokens *token.Manager,
	lim limiter.Limiter,
	log *zap.Logger,
) *UserServiceImpl {
	return &UserServiceImpl{users: users, hasher: hasher, tokens: tokens, lim: lim, log: orNop(log)}
}

// Register validates the request, parses the role and details, and stores the user.
func (s *UserServiceImpl) Register(ctx context.Context, req model.NewUser) (*model.User, error) {
	if !req.Identity.Valid() || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, fmt.Errorf("validation: email, platform, username and password are required: %w", errs.ErrBadRequest)
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	details, err := model.DetailsFromMap(role, req.Details)
	if err != nil {
		return nil, err
	}
	hash, salt, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Identity: req.Identity,
		Role:     role,
		Username: req.Username,
		Details:  details,
		PwdHash:  hash,
		SaltAuth: salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("id", u.ID.String()), zap.Stringer("role", role))
	return u, nil
}

// Login authenticates with rate limiting by (identity, ip).
func (s *UserServiceImpl) Login(ctx context.Context, id model.Identity, password, ip string) (model.Tokens, model.User, error) {
	key, ipHash := id.Key(), limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, key, ipHash)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	if !allowed {
		return model.Tokens{}, model.User{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByIdentity(ctx, id)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.User{}, err
	}
	if err != nil || !s.hasher.Verify(password, u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, key, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.User{}, errs.ErrRateLimited
		}
		// unknown identity and wrong password look the same
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	if err := s.lim.Success(ctx, key, ipHash); err != nil {
		s.log.Warn("limiter reset failed", zap.Error(err))
	}

	access, exp, err := s.tokens.Issue(model.Actor{ID: u.ID, Role: u.Role})
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: access, ExpiresAt: exp}, *u, nil
}

// Resolve looks the identity up; an unknown identity is ErrUnauthorized.
func (s *UserServiceImpl) Resolve(ctx context.Context, id model.Identity) (model.Actor, error) {
	if !id.Valid() {
		return model.Actor{}, fmt.Errorf("validation: email and platform are required: %w", errs.ErrBadRequest)
	}
	u, err := s.users.GetByIdentity(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Actor{}, fmt.Errorf("identity %s: %w", id.Key(), errs.ErrUnauthorized)
	}
	if err != nil {
		return model.Actor{}, err
	}
	return model.Actor{ID: u.ID, Role: u.Role}, nil
}

func (s *UserServiceImpl) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.User, error) {
	if err := s.selfOrAdmin(actor, id); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// Update applies patch. Role and identity are immutable. A "password"
// key in the details re-hashes the credentials and is never stored.
func (s *UserServiceImpl) Update(ctx context.Context, actor model.Actor, id uuid.UUID, patch model.UserPatch) (*model.User, error) {
	if err := s.selfOrAdmin(actor, id); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Username != nil && strings.TrimSpace(*patch.Username) != "" {
		u.Username = *patch.Username
	}
	if len(patch.Details) > 0 {
		if pw, ok := patch.Details[model.DetailsPassword].(string); ok && pw != "" {
			if u.PwdHash, u.SaltAuth, err = s.hasher.Hash(pw); err != nil {
				return nil, err
			}
		}
		if u.Details, err = u.Details.Merge(u.Role, patch.Details); err != nil {
			return nil, err
		}
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserServiceImpl) List(ctx context.Context, actor model.Actor) ([]*model.User, error) {
	if err := authorize(s.log, actor, policy.ActionManageUsers); err != nil {
		return nil, err
	}
	var (
		out   []*model.User
		after = uuid.Nil
	)
	const page = 500
	for {
		batch, err := s.users.Scan(ctx, after, page)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < page {
			return out, nil
		}
		after = batch[len(batch)-1].ID
	}
}

func (s *UserServiceImpl) DeleteAll(ctx context.Context, actor model.Actor) (int64, error) {
	if err := authorize(s.log, actor, policy.ActionManageUsers); err != nil {
		return 0, err
	}
	n, err := s.users.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("users deleted", zap.Int64("count", n), zap.String("by", actor.ID.String()))
	return n, nil
}

func (s *UserServiceImpl) selfOrAdmin(actor model.Actor, id uuid.UUID) error {
	if actor.ID == id {
		return nil
	}
	return authorize(s.log, actor, policy.ActionManageUsers)
}
