package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cuemby/keeper/pkg/supervisor"
	"github.com/cuemby/keeper/pkg/types"
)

// staticDBProvisioner is the daemon's default DBProvisioner: it derives
// deterministic, app-scoped credentials instead of reaching out to a real
// database cluster. DBProvisioner is a true external collaborator — the
// spec only names the interface it must satisfy — so this stands in for
// local/dev use; a site wiring a real Postgres fleet replaces it with its
// own implementation of the same interface.
type staticDBProvisioner struct{}

var _ supervisor.DBProvisioner = staticDBProvisioner{}

func (staticDBProvisioner) GetInfo(ctx context.Context, app types.AppName) (supervisor.DBInfo, error) {
	sum := sha256.Sum256([]byte(app))
	pass := hex.EncodeToString(sum[:])[:16]
	return supervisor.DBInfo{
		User:     fmt.Sprintf("app_%s", app),
		Pass:     pass,
		Database: fmt.Sprintf("app_%s", app),
	}, nil
}
