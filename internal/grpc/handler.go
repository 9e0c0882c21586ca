package grpc

import (
	"context"
	"errors"

	"github.com/soltixdb/chunkfs/internal/chunkstore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Backend is the worker the gRPC handler serves
type Backend interface {
	NodeID() string
	IsActive() bool
	PutChunk(fileID string, chunkIndex int, data []byte) error
	GetChunk(fileID string, chunkIndex int) ([]byte, error)
	DeleteChunks(fileID string) (int, error)
}

// ChunkStoreHandler implements ChunkStoreServer on a Backend
type ChunkStoreHandler struct {
	backend Backend
}

// NewChunkStoreHandler creates a handler
func NewChunkStoreHandler(backend Backend) *ChunkStoreHandler {
	return &ChunkStoreHandler{backend: backend}
}

func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chunkstore.ErrChunkNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, chunkstore.ErrInvalidKey):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func (h *ChunkStoreHandler) Probe(_ context.Context, _ *ProbeRequest) (*ProbeReply, error) {
	return &ProbeReply{NodeID: h.backend.NodeID(), Active: h.backend.IsActive()}, nil
}

func (h *ChunkStoreHandler) Put(_ context.Context, req *PutRequest) (*PutReply, error) {
	if err := h.backend.PutChunk(req.FileID, req.ChunkIndex, req.Data); err != nil {
		return nil, toStatus(err)
	}
	return &PutReply{}, nil
}

func (h *ChunkStoreHandler) Get(_ context.Context, req *GetRequest) (*GetReply, error) {
	data, err := h.backend.GetChunk(req.FileID, req.ChunkIndex)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetReply{Data: data}, nil
}

func (h *ChunkStoreHandler) DeleteAll(_ context.Context, req *DeleteAllRequest) (*DeleteAllReply, error) {
	n, err := h.backend.DeleteChunks(req.FileID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DeleteAllReply{Deleted: n}, nil
}
