// Package grpcserver exposes the platform services over gRPC.
package grpcserver

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tamir303/Afekaton2024/internal/convert"
	"github.com/tamir303/Afekaton2024/internal/model"
	"github.com/tamir303/Afekaton2024/internal/service"
	"github.com/tamir303/Afekaton2024/internal/token"
)

// Server wires services into gRPC handlers.
type Server struct {
	svc    service.Services
	tokens *token.Manager
}

var _ PlatformServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(svc service.Services, tokens *token.Manager) *Server {
	return &Server{svc: svc, tokens: tokens}
}

// serve decodes and validates the request, runs fn and encodes its reply.
func serve[Req, Resp any](in *structpb.Struct, fn func(Req) (Resp, error)) (*structpb.Struct, error) {
	var req Req
	if err := convert.FromStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}
	if err := convert.Validate(&req); err != nil {
		return nil, toStatus(err)
	}
	resp, err := fn(req)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := convert.ToStruct(resp)
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

// serveAs is serve for methods that need an authenticated caller.
func serveAs[Req, Resp any](s *Server, ctx context.Context, in *structpb.Struct, fn func(model.Actor, Req) (Resp, error)) (*structpb.Struct, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return serve(in, func(req Req) (Resp, error) { return fn(actor, req) })
}

// actor prefers the caller stored by AuthUnary and falls back to the request metadata.
func (s *Server) actor(ctx context.Context) (model.Actor, error) {
	if a, ok := ActorFromCtx(ctx); ok {
		return a, nil
	}
	return actorFromMD(ctx, s.tokens)
}

func remoteIP(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// --- Users ---

// Register creates a new account.
func (s *Server) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(in, func(req convert.NewUser) (convert.User, error) {
		u, err := s.svc.Users.Register(ctx, convert.ToNewUser(req))
		if err != nil {
			return convert.User{}, err
		}
		return convert.FromUser(u), nil
	})
}

// Login authenticates and returns an access token.
func (s *Server) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	ip := remoteIP(ctx)
	return serve(in, func(req convert.Login) (convert.LoginResult, error) {
		id := model.Identity{Email: req.Email, Platform: req.Platform}
		tok, u, err := s.svc.Users.Login(ctx, id, req.Password, ip)
		if err != nil {
			return convert.LoginResult{}, err
		}
		return convert.FromLogin(tok, u), nil
	})
}

func (s *Server) GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.IDRequest) (convert.User, error) {
		id, err := convert.ParseID(req.ID)
		if err != nil {
			return convert.User{}, err
		}
		u, err := s.svc.Users.Get(ctx, actor, id)
		if err != nil {
			return convert.User{}, err
		}
		return convert.FromUser(u), nil
	})
}

func (s *Server) UpdateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.UserUpdate) (convert.User, error) {
		id, err := convert.ParseID(req.ID)
		if err != nil {
			return convert.User{}, err
		}
		u, err := s.svc.Users.Update(ctx, actor, id, convert.ToUserPatch(req.User))
		if err != nil {
			return convert.User{}, err
		}
		return convert.FromUser(u), nil
	})
}

func (s *Server) ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, _ convert.Empty) (convert.Users, error) {
		us, err := s.svc.Users.List(ctx, actor)
		if err != nil {
			return convert.Users{}, err
		}
		return convert.Users{Users: convert.FromUsers(us)}, nil
	})
}

func (s *Server) DeleteUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, _ convert.Empty) (convert.Count, error) {
		n, err := s.svc.Users.DeleteAll(ctx, actor)
		return convert.Count{Count: n}, err
	})
}

// --- Objects ---

// CreateObject stores a new object. A participant's inactive object becomes a help request.
func (s *Server) CreateObject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.Object) (convert.Object, error) {
		nobj, err := convert.ToNewObject(req)
		if err != nil {
			return convert.Object{}, err
		}
		o, err := s.svc.Objects.Create(ctx, actor, nobj)
		if err != nil {
			return convert.Object{}, err
		}
		return convert.FromObject(o), nil
	})
}

func (s *Server) GetObject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.IDRequest) (convert.Object, error) {
		id, err := convert.ParseID(req.ID)
		if err != nil {
			return convert.Object{}, err
		}
		o, err := s.svc.Objects.Get(ctx, actor, id)
		if err != nil {
			return convert.Object{}, err
		}
		return convert.FromObject(o), nil
	})
}

func (s *Server) UpdateObject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.ObjectUpdate) (convert.Empty, error) {
		id, err := convert.ParseID(req.ID)
		if err != nil {
			return convert.Empty{}, err
		}
		return convert.Empty{}, s.svc.Objects.Update(ctx, actor, id, convert.ToObjectPatch(req.Object))
	})
}

func (s *Server) ListObjects(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, _ convert.Empty) (convert.Objects, error) {
		objs, err := s.svc.Objects.List(ctx, actor)
		return convert.Objects{Objects: convert.FromObjects(objs)}, err
	})
}

func (s *Server) DeleteObjects(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, _ convert.Empty) (convert.Count, error) {
		n, err := s.svc.Objects.DeleteAll(ctx, actor)
		return convert.Count{Count: n}, err
	})
}

func (s *Server) BindObject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.BindRequest) (convert.Empty, error) {
		parent, child, err := parseEdge(req)
		if err != nil {
			return convert.Empty{}, err
		}
		return convert.Empty{}, s.svc.Objects.Bind(ctx, actor, parent, child)
	})
}

func (s *Server) UnbindObject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.BindRequest) (convert.Empty, error) {
		parent, child, err := parseEdge(req)
		if err != nil {
			return convert.Empty{}, err
		}
		return convert.Empty{}, s.svc.Objects.Unbind(ctx, actor, parent, child)
	})
}

func (s *Server) GetChildren(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.IDRequest) (convert.Objects, error) {
		id, err := convert.ParseID(req.ID)
		if err != nil {
			return convert.Objects{}, err
		}
		objs, err := s.svc.Objects.Children(ctx, actor, id)
		return convert.Objects{Objects: convert.FromObjects(objs)}, err
	})
}

func (s *Server) GetParents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.IDRequest) (convert.Objects, error) {
		id, err := convert.ParseID(req.ID)
		if err != nil {
			return convert.Objects{}, err
		}
		objs, err := s.svc.Objects.Parents(ctx, actor, id)
		return convert.Objects{Objects: convert.FromObjects(objs)}, err
	})
}

// --- Queries ---

func (s *Server) ListByType(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.TypeRequest) (convert.Objects, error) {
		objs, err := s.svc.Query.ByType(ctx, actor, req.Type)
		return convert.Objects{Objects: convert.FromObjects(objs)}, err
	})
}

func (s *Server) DistinctByType(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.TypeRequest) (convert.Object, error) {
		o, err := s.svc.Query.DistinctByType(ctx, actor, req.Type)
		if err != nil {
			return convert.Object{}, err
		}
		return convert.FromObject(o), nil
	})
}

func (s *Server) ChildrenByTypeAndAlias(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.TypeAliasRequest) (convert.Objects, error) {
		id, err := convert.ParseID(req.ID)
		if err != nil {
			return convert.Objects{}, err
		}
		objs, err := s.svc.Query.ChildrenByTypeAndAlias(ctx, actor, id, req.Type, req.Alias)
		return convert.Objects{Objects: convert.FromObjects(objs)}, err
	})
}

func (s *Server) ParentsByTypeAndAlias(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.TypeAliasRequest) (convert.Objects, error) {
		id, err := convert.ParseID(req.ID)
		if err != nil {
			return convert.Objects{}, err
		}
		objs, err := s.svc.Query.ParentsByTypeAndAlias(ctx, actor, id, req.Type, req.Alias)
		return convert.Objects{Objects: convert.FromObjects(objs)}, err
	})
}

// --- Commands ---

func (s *Server) InvokeCommand(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.Command) (convert.Command, error) {
		nc, err := convert.ToNewCommand(req)
		if err != nil {
			return convert.Command{}, err
		}
		c, err := s.svc.Commands.Invoke(ctx, actor, nc)
		if err != nil {
			return convert.Command{}, err
		}
		return convert.FromCommand(c), nil
	})
}

func (s *Server) ListCommands(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, _ convert.Empty) (convert.Commands, error) {
		cs, err := s.svc.Commands.List(ctx, actor)
		return convert.Commands{Commands: convert.FromCommands(cs)}, err
	})
}

func (s *Server) DeleteCommands(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, _ convert.Empty) (convert.Count, error) {
		n, err := s.svc.Commands.DeleteAll(ctx, actor)
		return convert.Count{Count: n}, err
	})
}

// --- Subjects ---

// ListSubjects is public: registration forms need the catalog.
func (s *Server) ListSubjects(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serve(in, func(_ convert.Empty) (convert.Subjects, error) {
		ss, err := s.svc.Subjects.List(ctx)
		return convert.Subjects{Subjects: convert.FromSubjects(ss)}, err
	})
}

func (s *Server) AddSubject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return serveAs(s, ctx, in, func(actor model.Actor, req convert.Subject) (convert.Subject, error) {
		sub, err := s.svc.Subjects.Add(ctx, actor, convert.ToSubject(req))
		if err != nil {
			return convert.Subject{}, err
		}
		return convert.FromSubject(sub), nil
	})
}

func parseEdge(req convert.BindRequest) (parent, child uuid.UUID, err error) {
	if parent, err = convert.ParseID(req.ID); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if child, err = convert.ParseID(req.InternalObjectID); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return parent, child, nil
}
