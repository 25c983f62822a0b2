package rpc

import (
	"context"
	"fmt"

	"github.com/cuemby/keeper/pkg/supervisor"
	"github.com/cuemby/keeper/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is a supervisor.ProcessTracker that dispatches Run/Terminate over
// gRPC to a remote Server. The remote side is responsible for its own
// owner/credential resolution and logging; RunRequest.Owner and
// RunRequest.Logger are not sent across the wire.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an established connection to a remote rpc.Server.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

var _ supervisor.ProcessTracker = (*Client)(nil)

func (c *Client) Run(ctx context.Context, req supervisor.RunRequest) (*types.ChildHandle, error) {
	payload, err := runRequestToStruct(RunRequest{
		Exec:    req.Exec,
		WorkDir: req.WorkDir,
		Args:    req.Args,
		Env:     req.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("rpc: encode run request: %w", err)
	}

	reply := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodRun, payload, reply); err != nil {
		return nil, fmt.Errorf("rpc: run: %w", err)
	}

	return &types.ChildHandle{PID: int(reply.Fields["pid"].GetNumberValue())}, nil
}

func (c *Client) Terminate(ctx context.Context, child *types.ChildHandle) error {
	payload, err := structpb.NewStruct(map[string]interface{}{"pid": float64(child.PID)})
	if err != nil {
		return fmt.Errorf("rpc: encode terminate request: %w", err)
	}

	reply := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodKill, payload, reply); err != nil {
		return fmt.Errorf("rpc: terminate: %w", err)
	}
	return nil
}
