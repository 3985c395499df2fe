package api

import (
	"context"
	"fmt"

	"github.com/heysubinoy/quotakv/pkg/kv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GRPCClient calls the KV service over an established connection. Store
// errors are mapped back onto the kv sentinel errors.
type GRPCClient struct {
	conn grpc.ClientConnInterface
}

// NewGRPCClient returns a client that invokes the KV service on conn.
func NewGRPCClient(conn grpc.ClientConnInterface) *GRPCClient {
	return &GRPCClient{conn: conn}
}

// List returns every entry in the store.
func (c *GRPCClient) List(ctx context.Context) ([]kv.Entry, error) {
	out, err := c.invoke(ctx, "List", map[string]any{})
	if err != nil {
		return nil, err
	}
	values := out.GetFields()["entries"].GetListValue().GetValues()
	entries := make([]kv.Entry, 0, len(values))
	for _, v := range values {
		entries = append(entries, structEntry(v.GetStructValue()))
	}
	return entries, nil
}

// Get returns the entry for key.
func (c *GRPCClient) Get(ctx context.Context, key string) (kv.Entry, error) {
	out, err := c.invoke(ctx, "Get", map[string]any{kv.FieldKey: key})
	if err != nil {
		return kv.Entry{}, err
	}
	return structEntry(out), nil
}

// Create inserts a new entry, failing if the key exists or the store is full.
func (c *GRPCClient) Create(ctx context.Context, key, value string) (kv.Entry, error) {
	out, err := c.invoke(ctx, "Insert", map[string]any{kv.FieldKey: key, kv.FieldValue: value})
	if err != nil {
		return kv.Entry{}, err
	}
	return structEntry(out), nil
}

// Put creates or replaces an entry.
func (c *GRPCClient) Put(ctx context.Context, key, value string) (kv.Entry, error) {
	out, err := c.invoke(ctx, "Upsert", map[string]any{kv.FieldKey: key, kv.FieldValue: value})
	if err != nil {
		return kv.Entry{}, err
	}
	return structEntry(out), nil
}

// Delete removes the entry for key.
func (c *GRPCClient) Delete(ctx context.Context, key string) error {
	_, err := c.invoke(ctx, "Delete", map[string]any{kv.FieldKey: key})
	return err
}

func (c *GRPCClient) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+KVServiceName+"/"+method, in, out); err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

// fromStatus wraps the kv sentinel matching a gRPC status code so callers
// can use errors.Is regardless of transport.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.InvalidArgument:
		sentinel = kv.ErrInvalidEntry
	case codes.AlreadyExists:
		sentinel = kv.ErrDuplicateKey
	case codes.ResourceExhausted:
		sentinel = kv.ErrQuotaExceeded
	case codes.NotFound:
		sentinel = kv.ErrNotFound
	default:
		return err
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}

func structEntry(s *structpb.Struct) kv.Entry {
	fields := s.GetFields()
	return kv.Entry{
		Key:   fields[kv.FieldKey].GetStringValue(),
		Value: fields[kv.FieldValue].GetStringValue(),
	}
}
