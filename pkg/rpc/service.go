// Package rpc provides the optional remote transport for ProcessTracker,
// used when the daemon supervises apps on a different host than the one
// running the bundle watcher and admin API. It is narrowed from the
// teacher's manager↔worker gRPC wiring: one service, no mTLS, no cluster
// membership — callers that don't need a remote boundary use an in-process
// ProcessTracker implementation instead and never import this package.
package rpc

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName  = "keeper.rpc.ProcessTracker"
	methodRun    = "/" + serviceName + "/Run"
	methodKill   = "/" + serviceName + "/Terminate"
)

// RunRequest and RunReply mirror supervisor.RunRequest/types.ChildHandle
// across the wire as structpb.Struct payloads, avoiding a protoc code-gen
// step for this one narrow boundary. Owner and Logger have no wire form and
// are not sent: the remote backend resolves its own credential and logs
// through its own logger.
type RunRequest struct {
	Exec    string
	WorkDir string
	Args    []string
	Env     []string
}

type RunReply struct {
	PID int
}

// Backend is implemented by whatever actually launches and reaps processes
// on the remote host — the same contract as supervisor.ProcessTracker,
// expressed without importing the supervisor package.
type Backend interface {
	Run(ctx context.Context, req RunRequest) (RunReply, error)
	Terminate(ctx context.Context, pid int) error
}

// Server exposes a Backend over gRPC.
type Server struct {
	backend Backend
	grpc    *grpc.Server
}

// NewServer builds a Server dispatching RPCs to backend.
func NewServer(backend Backend) *Server {
	s := &Server{backend: backend}
	s.grpc = grpc.NewServer()
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Start listens on addr and serves until the process exits or Stop is
// called.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", addr, err)
	}
	return s.grpc.Serve(lis)
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

func (s *Server) run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rr := runRequestFromStruct(req)
	reply, err := s.backend.Run(ctx, rr)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]interface{}{"pid": float64(reply.PID)})
}

func (s *Server) terminate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pid := int(req.Fields["pid"].GetNumberValue())
	if err := s.backend.Terminate(ctx, pid); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}

func runRequestFromStruct(s *structpb.Struct) RunRequest {
	var req RunRequest
	if v, ok := s.Fields["exec"]; ok {
		req.Exec = v.GetStringValue()
	}
	if v, ok := s.Fields["work_dir"]; ok {
		req.WorkDir = v.GetStringValue()
	}
	if v, ok := s.Fields["args"]; ok {
		for _, e := range v.GetListValue().GetValues() {
			req.Args = append(req.Args, e.GetStringValue())
		}
	}
	if v, ok := s.Fields["env"]; ok {
		for _, e := range v.GetListValue().GetValues() {
			req.Env = append(req.Env, e.GetStringValue())
		}
	}
	return req
}

func runRequestToStruct(req RunRequest) (*structpb.Struct, error) {
	args := make([]interface{}, len(req.Args))
	for i, a := range req.Args {
		args[i] = a
	}
	env := make([]interface{}, len(req.Env))
	for i, e := range req.Env {
		env[i] = e
	}
	return structpb.NewStruct(map[string]interface{}{
		"exec":     req.Exec,
		"work_dir": req.WorkDir,
		"args":     args,
		"env":      env,
	})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Run",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				s := srv.(*Server)
				if interceptor == nil {
					return s.run(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: s, FullMethod: methodRun}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return s.run(ctx, req.(*structpb.Struct))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
		{
			MethodName: "Terminate",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				s := srv.(*Server)
				if interceptor == nil {
					return s.terminate(ctx, in)
				}
				info := &grpc.UnaryServerInfo{Server: s, FullMethod: methodKill}
				handler := func(ctx context.Context, req interface{}) (interface{}, error) {
					return s.terminate(ctx, req.(*structpb.Struct))
				}
				return interceptor(ctx, in, info, handler)
			},
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "keeper/rpc.proto",
}
