package api

import (
	"context"
	"errors"

	"github.com/heysubinoy/quotakv/internal/logr"
	"github.com/heysubinoy/quotakv/pkg/kv"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCServer exposes a kv.Store over gRPC. Requests and responses are
// google.protobuf.Struct messages using the same field names as the HTTP
// API.
type GRPCServer struct {
	Store  kv.Store
	Logger logr.Logger
}

var _ kvServiceServer = (*GRPCServer)(nil)

// NewGRPCServer creates a new gRPC server with the given store.
func NewGRPCServer(store kv.Store, logger logr.Logger) *GRPCServer {
	return &GRPCServer{
		Store:  store,
		Logger: logger,
	}
}

// List returns every entry under the "entries" field.
func (s *GRPCServer) List(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	entries := s.Store.List()
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = entryFields(e)
	}
	return s.toStruct(map[string]any{"entries": list})
}

// Get retrieves a single entry by main_key.
func (s *GRPCServer) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := kv.ValidateKey(req.AsMap())
	if err != nil {
		return nil, s.statusError(err)
	}
	entry, err := s.Store.Get(key)
	if err != nil {
		return nil, s.statusError(err)
	}
	return s.toStruct(entryFields(entry))
}

// Insert creates a new entry.
func (s *GRPCServer) Insert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	entry, err := kv.ValidateEntry(req.AsMap())
	if err != nil {
		return nil, s.statusError(err)
	}
	created, err := s.Store.Insert(entry.Key, entry.Value)
	if err != nil {
		return nil, s.statusError(err)
	}
	return s.toStruct(entryFields(created))
}

// Upsert creates or replaces an entry.
func (s *GRPCServer) Upsert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	entry, err := kv.ValidateEntry(req.AsMap())
	if err != nil {
		return nil, s.statusError(err)
	}
	stored, err := s.Store.Upsert(entry.Key, entry.Value)
	if err != nil {
		return nil, s.statusError(err)
	}
	return s.toStruct(entryFields(stored))
}

// Delete removes an entry by main_key.
func (s *GRPCServer) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := kv.ValidateKey(req.AsMap())
	if err != nil {
		return nil, s.statusError(err)
	}
	if err := s.Store.Remove(key); err != nil {
		return nil, s.statusError(err)
	}
	return s.toStruct(map[string]any{kv.FieldKey: key})
}

func (s *GRPCServer) toStruct(fields map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(fields)
	if err != nil {
		s.Logger.Error(err, "encoding grpc response")
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return st, nil
}

// statusError maps store errors onto gRPC status codes.
func (s *GRPCServer) statusError(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, kv.ErrInvalidEntry):
		code = codes.InvalidArgument
	case errors.Is(err, kv.ErrDuplicateKey):
		code = codes.AlreadyExists
	case errors.Is(err, kv.ErrQuotaExceeded):
		code = codes.ResourceExhausted
	case errors.Is(err, kv.ErrNotFound):
		code = codes.NotFound
	default:
		s.Logger.Error(err, "handling grpc request")
		return status.Error(codes.Internal, "internal error")
	}
	s.Logger.V(1).Info("rejected grpc request", "kind", kv.Kind(err), "reason", err.Error())
	return status.Error(code, err.Error())
}

func entryFields(e kv.Entry) map[string]any {
	return map[string]any{kv.FieldKey: e.Key, kv.FieldValue: e.Value}
}
