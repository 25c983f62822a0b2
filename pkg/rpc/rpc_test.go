package rpc

import (
	"context"
	"net"
	"testing"

	"github.com/cuemby/keeper/pkg/supervisor"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

type fakeBackend struct {
	lastRun  RunRequest
	killed   []int
}

func (f *fakeBackend) Run(ctx context.Context, req RunRequest) (RunReply, error) {
	f.lastRun = req
	return RunReply{PID: 4242}, nil
}

func (f *fakeBackend) Terminate(ctx context.Context, pid int) error {
	f.killed = append(f.killed, pid)
	return nil
}

func dialBufconn(t *testing.T, backend Backend) (*grpc.ClientConn, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)

	srv := NewServer(backend)
	go func() { _ = srv.grpc.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		srv.Stop()
	}
}

func TestClientRunAndTerminateRoundTrip(t *testing.T) {
	backend := &fakeBackend{}
	conn, cleanup := dialBufconn(t, backend)
	defer cleanup()

	client := NewClient(conn)

	child, err := client.Run(context.Background(), supervisor.RunRequest{
		Exec:    "app",
		WorkDir: "/work",
		Args:    []string{"--flag"},
		Env:     []string{"PORT=4100"},
	})
	require.NoError(t, err)
	require.Equal(t, 4242, child.PID)
	require.Equal(t, "app", backend.lastRun.Exec)
	require.Equal(t, []string{"--flag"}, backend.lastRun.Args)

	require.NoError(t, client.Terminate(context.Background(), child))
	require.Equal(t, []int{4242}, backend.killed)
}
