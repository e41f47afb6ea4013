// Package handler exposes the data-access layer over gRPC.
//
// Messages are google.protobuf.Struct values so every registered entity can
// be written, read and searched through one service.
package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "omnipos.dal.v1.EntityService"

// EntityServiceServer is the server API of the entity service.
type EntityServiceServer interface {
	Write(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Read(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Search(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListCategories(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterEntityServiceServer(s grpc.ServiceRegistrar, srv EntityServiceServer) {
	s.RegisterService(&EntityServiceDesc, srv)
}

type unaryMethod func(srv EntityServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EntityServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + name,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EntityServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var EntityServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EntityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Write", Handler: unaryHandler("Write", EntityServiceServer.Write)},
		{MethodName: "Read", Handler: unaryHandler("Read", EntityServiceServer.Read)},
		{MethodName: "Search", Handler: unaryHandler("Search", EntityServiceServer.Search)},
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", EntityServiceServer.ListProducts)},
		{MethodName: "ListCategories", Handler: unaryHandler("ListCategories", EntityServiceServer.ListCategories)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omnipos/dal/v1/entity.proto",
}
