package store

import (
	"testing"

	"github.com/cuemby/keeper/pkg/security"
	"github.com/cuemby/keeper/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestPutGetDelete(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	rec := Record{Bundle: "/bundles/app1.tar.gz", Owner: &security.Owner{UID: 1000, GID: 1000}}
	require.NoError(t, s.Put("app1", rec))

	got, found, err := s.Get("app1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec.Bundle, got.Bundle)
	require.Equal(t, rec.Owner.UID, got.Owner.UID)

	require.NoError(t, s.Delete("app1"))
	_, found, err = s.Get("app1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetMissingIsNotAnError(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get("nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestList(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("app1", Record{Bundle: "a"}))
	require.NoError(t, s.Put("app2", Record{Bundle: "b"}))

	names, err := s.List()
	require.NoError(t, err)
	require.ElementsMatch(t, []types.AppName{"app1", "app2"}, names)
}
