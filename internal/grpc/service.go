package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "chunkfs.ChunkStore"

// Full method names
const (
	MethodProbe     = "/" + serviceName + "/Probe"
	MethodPut       = "/" + serviceName + "/Put"
	MethodGet       = "/" + serviceName + "/Get"
	MethodDeleteAll = "/" + serviceName + "/DeleteAll"
)

type ProbeRequest struct{}

type ProbeReply struct {
	NodeID string `json:"node_id"`
	Active bool   `json:"active"`
}

type PutRequest struct {
	FileID     string `json:"data_id"`
	ChunkIndex int    `json:"chunk_id"`
	Data       []byte `json:"data"`
}

type PutReply struct{}

type GetRequest struct {
	FileID     string `json:"data_id"`
	ChunkIndex int    `json:"chunk_id"`
}

type GetReply struct {
	Data []byte `json:"data"`
}

type DeleteAllRequest struct {
	FileID string `json:"data_id"`
}

type DeleteAllReply struct {
	Deleted int `json:"deleted"`
}

// ChunkStoreServer is the server side of the chunk API
type ChunkStoreServer interface {
	Probe(ctx context.Context, req *ProbeRequest) (*ProbeReply, error)
	Put(ctx context.Context, req *PutRequest) (*PutReply, error)
	Get(ctx context.Context, req *GetRequest) (*GetReply, error)
	DeleteAll(ctx context.Context, req *DeleteAllRequest) (*DeleteAllReply, error)
}

// unary adapts a typed method to a grpc.MethodHandler
func unary[Req any, Resp any](fullMethod string, call func(ChunkStoreServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(ChunkStoreServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		})
	}
}

var chunkStoreServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ChunkStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Probe", Handler: unary(MethodProbe, ChunkStoreServer.Probe)},
		{MethodName: "Put", Handler: unary(MethodPut, ChunkStoreServer.Put)},
		{MethodName: "Get", Handler: unary(MethodGet, ChunkStoreServer.Get)},
		{MethodName: "DeleteAll", Handler: unary(MethodDeleteAll, ChunkStoreServer.DeleteAll)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chunkfs/chunkstore",
}

// RegisterChunkStoreServer registers srv on s
func RegisterChunkStoreServer(s grpc.ServiceRegistrar, srv ChunkStoreServer) {
	s.RegisterService(&chunkStoreServiceDesc, srv)
}
