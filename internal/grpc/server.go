package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/soltixdb/chunkfs/internal/logging"
	"github.com/soltixdb/chunkfs/internal/utils"
	"google.golang.org/grpc"
)

// ChunkServer serves the chunk API of one datanode
type ChunkServer struct {
	address    string
	grpcServer *grpc.Server
	logger     *logging.Logger
	handler    *ChunkStoreHandler
	stopOnce   sync.Once
}

// NewChunkServer creates a server for backend listening on address
func NewChunkServer(address string, backend Backend, logger *logging.Logger) *ChunkServer {
	s := &ChunkServer{
		address: address,
		logger:  logger.WithComponent("grpc"),
		handler: NewChunkStoreHandler(backend),
	}
	s.grpcServer = grpc.NewServer(
		grpc.MaxRecvMsgSize(utils.GRPCMaxMessageSize),
		grpc.MaxSendMsgSize(utils.GRPCMaxMessageSize),
	)
	RegisterChunkStoreServer(s.grpcServer, s.handler)
	return s
}

// Start listens on the configured address and serves until ctx is done
func (s *ChunkServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.Serve(listener)

	<-ctx.Done()
	s.logger.Info("Shutting down gRPC server")
	s.Stop()
	return nil
}

// Serve starts serving on an existing listener in the background
func (s *ChunkServer) Serve(listener net.Listener) {
	s.logger.Info("gRPC server starting", "address", listener.Addr().String())
	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Error("gRPC server error", "error", err)
		}
	}()
}

// Stop stops the gRPC server gracefully. Safe to call more than once.
func (s *ChunkServer) Stop() {
	s.stopOnce.Do(func() {
		s.grpcServer.GracefulStop()
	})
}
