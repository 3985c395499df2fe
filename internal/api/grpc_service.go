package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// KVServiceName is the fully qualified gRPC service name.
const KVServiceName = "quotakv.v1.KVService"

// kvServiceServer is the server API for the KV service.
type kvServiceServer interface {
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Insert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Upsert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(kvServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + KVServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(kvServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(kvServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// kvServiceDesc describes the KV service for grpc.Server registration.
var kvServiceDesc = grpc.ServiceDesc{
	ServiceName: KVServiceName,
	HandlerType: (*kvServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("List", kvServiceServer.List),
		unaryHandler("Get", kvServiceServer.Get),
		unaryHandler("Insert", kvServiceServer.Insert),
		unaryHandler("Upsert", kvServiceServer.Upsert),
		unaryHandler("Delete", kvServiceServer.Delete),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterKVService registers s on the given gRPC server.
func RegisterKVService(r grpc.ServiceRegistrar, s *GRPCServer) {
	r.RegisterService(&kvServiceDesc, s)
}
