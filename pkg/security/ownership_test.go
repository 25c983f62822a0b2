package security

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupOwnerCurrentUser(t *testing.T) {
	uid := os.Getuid()
	owner, err := LookupOwner(strconv.Itoa(uid))
	require.NoError(t, err)
	require.Equal(t, uid, owner.UID)
}

func TestChownPathNilOwnerIsNoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, ChownPath(dir, nil))
}

func TestChownFileNilOwnerIsNoop(t *testing.T) {
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "f"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, ChownFile(f, nil))
}

func TestCredentialNilOwner(t *testing.T) {
	var o *Owner
	require.Nil(t, o.Credential())
}
