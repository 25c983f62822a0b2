package security

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/cuemby/keeper/pkg/kerrs"
)

// Owner is the UID/GID pair extracted files are chowned to and the child
// process is launched under. A nil Owner means "don't change ownership, run
// as the keeper daemon's own user" — the behavior when no owner is supplied
// to start.
type Owner struct {
	UID int
	GID int
}

// LookupOwner resolves a username (or numeric UID) to an Owner using its
// primary group.
func LookupOwner(username string) (*Owner, error) {
	u, err := user.Lookup(username)
	if err != nil {
		if _, numErr := strconv.Atoi(username); numErr == nil {
			u, err = user.LookupId(username)
		}
		if err != nil {
			return nil, fmt.Errorf("security: lookup owner %q: %w", username, err)
		}
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("security: parse uid %q: %w", u.Uid, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("security: parse gid %q: %w", u.Gid, err)
	}
	return &Owner{UID: uid, GID: gid}, nil
}

// ChownPath chowns an already-created directory to owner. Called
// immediately after MkdirAll, before any file lands inside it, per the
// ownership invariant the bundle extractor relies on: directories must be owned before
// files are written into them.
func ChownPath(path string, owner *Owner) error {
	if owner == nil {
		return nil
	}
	if err := os.Chown(path, owner.UID, owner.GID); err != nil {
		return kerrs.New(kerrs.BundleIO, "chown directory", err)
	}
	return nil
}

// ChownFile chowns an open file descriptor to owner before any content is
// written to it, so the descriptor never becomes visible to other
// processes under the wrong ownership.
func ChownFile(f *os.File, owner *Owner) error {
	if owner == nil {
		return nil
	}
	if err := f.Chown(owner.UID, owner.GID); err != nil {
		return kerrs.New(kerrs.BundleIO, "chown file", err)
	}
	return nil
}

// Credential returns the syscall.Credential to run a child process under,
// or nil to inherit the keeper daemon's own identity.
func (o *Owner) Credential() *syscall.Credential {
	if o == nil {
		return nil
	}
	return &syscall.Credential{Uid: uint32(o.UID), Gid: uint32(o.GID)}
}
