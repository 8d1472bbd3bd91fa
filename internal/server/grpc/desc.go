package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "afekaton.v1.Platform"

// PlatformServer is the handler set behind ServiceName. Every method
// exchanges google.protobuf.Struct messages shaped like the REST bodies.
type PlatformServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateObject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetObject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateObject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListObjects(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteObjects(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BindObject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UnbindObject(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetChildren(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetParents(context.Context, *structpb.Struct) (*structpb.Struct, error)

	ListByType(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DistinctByType(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChildrenByTypeAndAlias(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ParentsByTypeAndAlias(context.Context, *structpb.Struct) (*structpb.Struct, error)

	InvokeCommand(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCommands(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteCommands(context.Context, *structpb.Struct) (*structpb.Struct, error)

	ListSubjects(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddSubject(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// FullMethod returns the wire path of a method, e.g. "/afekaton.v1.Platform/Login".
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

type unaryCall func(PlatformServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PlatformServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PlatformServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes PlatformServer for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlatformServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Register", PlatformServer.Register),
		unary("Login", PlatformServer.Login),
		unary("GetUser", PlatformServer.GetUser),
		unary("UpdateUser", PlatformServer.UpdateUser),
		unary("ListUsers", PlatformServer.ListUsers),
		unary("DeleteUsers", PlatformServer.DeleteUsers),
		unary("CreateObject", PlatformServer.CreateObject),
		unary("GetObject", PlatformServer.GetObject),
		unary("UpdateObject", PlatformServer.UpdateObject),
		unary("ListObjects", PlatformServer.ListObjects),
		unary("DeleteObjects", PlatformServer.DeleteObjects),
		unary("BindObject", PlatformServer.BindObject),
		unary("UnbindObject", PlatformServer.UnbindObject),
		unary("GetChildren", PlatformServer.GetChildren),
		unary("GetParents", PlatformServer.GetParents),
		unary("ListByType", PlatformServer.ListByType),
		unary("DistinctByType", PlatformServer.DistinctByType),
		unary("ChildrenByTypeAndAlias", PlatformServer.ChildrenByTypeAndAlias),
		unary("ParentsByTypeAndAlias", PlatformServer.ParentsByTypeAndAlias),
		unary("InvokeCommand", PlatformServer.InvokeCommand),
		unary("ListCommands", PlatformServer.ListCommands),
		unary("DeleteCommands", PlatformServer.DeleteCommands),
		unary("ListSubjects", PlatformServer.ListSubjects),
		unary("AddSubject", PlatformServer.AddSubject),
	},
	Streams: []grpc.StreamDesc{},
}

// Register attaches srv to gs.
func Register(gs grpc.ServiceRegistrar, srv PlatformServer) {
	gs.RegisterService(&ServiceDesc, srv)
}
