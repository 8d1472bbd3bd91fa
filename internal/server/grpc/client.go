package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tamir303/Afekaton2024/internal/convert"
)

// Client calls PlatformServer methods with boundary DTOs instead of raw Structs.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with in and decodes the reply into out. Either may be nil.
// Status errors are joined with the matching errs sentinel.
func (c *Client) Call(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	if in == nil {
		in = convert.Empty{}
	}
	req, err := convert.ToStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, resp, opts...); err != nil {
		return FromStatus(err)
	}
	if out == nil {
		return nil
	}
	return convert.FromStruct(resp, out)
}
