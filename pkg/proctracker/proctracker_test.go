package proctracker

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/keeper/pkg/supervisor"
	"github.com/cuemby/keeper/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRunAndTerminateSleepProcess(t *testing.T) {
	tr := New()

	child, err := tr.Run(context.Background(), supervisor.RunRequest{
		Exec:   "/bin/sleep",
		Args:   []string{"30"},
		Env:    []string{},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	require.Greater(t, child.PID, 0)

	require.NoError(t, tr.Terminate(context.Background(), child))
}

func TestRunNonexistentBinaryReturnsError(t *testing.T) {
	tr := New()
	_, err := tr.Run(context.Background(), supervisor.RunRequest{
		Exec:   "/no/such/binary-keeper-test",
		Logger: zerolog.Nop(),
	})
	require.Error(t, err)
}

func TestTerminateUnknownPIDIsNoop(t *testing.T) {
	tr := New()
	err := tr.Terminate(context.Background(), &types.ChildHandle{PID: 999999})
	require.NoError(t, err)
}

func TestTerminateEscalatesToSIGKILL(t *testing.T) {
	tr := New()
	child, err := tr.Run(context.Background(), supervisor.RunRequest{
		Exec:   "/bin/sh",
		Args:   []string{"-c", "trap '' TERM; sleep 30"},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, tr.Terminate(context.Background(), child))
	require.Less(t, time.Since(start), 10*time.Second)
}
