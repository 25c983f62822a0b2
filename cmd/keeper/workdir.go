package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/keeper/pkg/types"
	"github.com/google/uuid"
)

// workDirAllocator mints a fresh directory under baseDir/work for each
// bundle incarnation, named by app and a random suffix so a bring-up and a
// concurrent reload never collide.
type workDirAllocator struct {
	baseDir string
}

func newWorkDirAllocator(dataDir string) (*workDirAllocator, error) {
	base := filepath.Join(dataDir, "work")
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &workDirAllocator{baseDir: base}, nil
}

// Allocate implements supervisor.TempDirAllocator.
func (a *workDirAllocator) Allocate(app types.AppName) (string, error) {
	dir := filepath.Join(a.baseDir, fmt.Sprintf("%s-%s", app, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("allocate workdir for %s: %w", app, err)
	}
	return dir, nil
}
