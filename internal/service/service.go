// Package service contains the application services: object graph, typed
// queries, users, commands, subjects and the edge sweeper.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/policy"
)

// HelpRequestNotifier receives help requests: inactive objects a participant
// tried to create.
type HelpRequestNotifier interface {
	NotifyHelpRequest(ctx context.Context, actor model.Actor, req model.NewObject)
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// authorize returns a wrapped ErrForbidden and logs the decision when role may not perform action.
func authorize(log *zap.Logger, actor model.Actor, action policy.Action) error {
	if d := policy.Check(actor.Role, action); d != policy.Allow {
		log.Warn("access denied",
			zap.String("actor", actor.ID.String()),
			zap.Stringer("role", actor.Role),
			zap.String("action", string(action)),
			zap.Stringer("decision", d),
		)
		return fmt.Errorf("%s: %w", action, errs.ErrForbidden)
	}
	return nil
}

// Services bundles the application services the transports dispatch to.
type Services struct {
	Users    UserService
	Objects  ObjectService
	Query    QueryService
	Commands CommandService
	Subjects SubjectService
}
