package grpcserver

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/tamir303/Afekaton2024/internal/errs"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/token"
)

type ctxKey string

const actorKey ctxKey = "afk.actor"

// WithActor stores the authenticated caller in context.
func WithActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromCtx fetches the caller stored by WithActor.
func ActorFromCtx(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorKey).(model.Actor)
	return a, ok
}

// publicMethods need no token.
var publicMethods = map[string]bool{
	FullMethod("Register"):     true,
	FullMethod("Login"):        true,
	FullMethod("ListSubjects"): true,
}

// AuthUnary verifies "authorization: Bearer <JWT>" and stores the actor in context.
// Methods outside ServiceName (health, reflection) and public methods pass through.
func AuthUnary(tokens *token.Manager) grpc.UnaryServerInterceptor {
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) || publicMethods[info.FullMethod] {
			return next(ctx, req)
		}
		actor, err := actorFromMD(ctx, tokens)
		if err != nil {
			return nil, toStatus(err)
		}
		return next(WithActor(ctx, actor), req)
	}
}

func actorFromMD(ctx context.Context, tokens *token.Manager) (model.Actor, error) {
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return model.Actor{}, errors.Join(errs.ErrUnauthorized, err)
	}
	return tokens.Verify(tok)
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}
