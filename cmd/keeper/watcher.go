package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuemby/keeper/pkg/log"
	"github.com/cuemby/keeper/pkg/security"
	"github.com/cuemby/keeper/pkg/types"
	"github.com/fsnotify/fsnotify"
)

// bundleWatcher watches incomingDir for bundle archives (app-name.keter)
// arriving, changing, or disappearing, and drives the registry accordingly.
// Grounded on the teacher's reconciler-loop idiom: react to observed state,
// don't hold any state of its own beyond the fsnotify.Watcher.
type bundleWatcher struct {
	dir     string
	owner   *security.Owner
	reg     *registry
	watcher *fsnotify.Watcher
}

func newBundleWatcher(dir string, owner *security.Owner, reg *registry) (*bundleWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &bundleWatcher{dir: dir, owner: owner, reg: reg, watcher: w}, nil
}

// Run processes filesystem events until ctx is cancelled.
func (bw *bundleWatcher) Run(ctx context.Context) {
	defer bw.watcher.Close()
	for {
		select {
		case ev, ok := <-bw.watcher.Events:
			if !ok {
				return
			}
			bw.handle(ctx, ev)
		case err, ok := <-bw.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("bundle watcher error", err)
		case <-ctx.Done():
			return
		}
	}
}

func (bw *bundleWatcher) handle(ctx context.Context, ev fsnotify.Event) {
	app := appNameForBundle(ev.Name)
	if app == "" {
		return
	}
	bundle := types.BundleRef(ev.Name)

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if bw.reg.Terminate(app) {
			log.Info("terminated " + string(app) + " (bundle removed)")
		}
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		if _, ok := bw.reg.State(app); ok {
			if bw.reg.Reload(app, bundle) {
				log.Info("reloading " + string(app))
			}
			return
		}
		if err := bw.reg.Start(ctx, app, bundle, bw.owner); err != nil {
			log.Errorf(fmt.Sprintf("start %s failed", app), err)
		}
	}
}

// appNameForBundle derives an AppName from a bundle file's base name,
// stripping the .keter extension Keter-style bundles use. Non-bundle files
// (dotfiles, partial uploads) are ignored by returning "".
func appNameForBundle(path string) types.AppName {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return ""
	}
	const ext = ".keter"
	if !strings.HasSuffix(base, ext) {
		return ""
	}
	return types.AppName(strings.TrimSuffix(base, ext))
}
