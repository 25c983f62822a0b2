package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cuemby/keeper/pkg/api"
	"github.com/cuemby/keeper/pkg/events"
	"github.com/cuemby/keeper/pkg/log"
	"github.com/cuemby/keeper/pkg/metrics"
	"github.com/cuemby/keeper/pkg/proctracker"
	"github.com/cuemby/keeper/pkg/router"
	"github.com/cuemby/keeper/pkg/rpc"
	"github.com/cuemby/keeper/pkg/security"
	"github.com/cuemby/keeper/pkg/store"
	"github.com/cuemby/keeper/pkg/supervisor"
	"github.com/cuemby/keeper/pkg/types"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the keeper daemon in the foreground",
	Long: `Run watches the incoming-dir for bundle archives, supervises every app
discovered there through a full bring-up/reload/terminate lifecycle, and
serves the admin HTTP endpoint and Prometheus metrics.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().String("data-dir", "/var/lib/keeper", "Directory for the app registry, bundle work directories, and state")
	runCmd.Flags().String("incoming-dir", "/var/lib/keeper/incoming", "Directory watched for app-name.keter bundle archives")
	runCmd.Flags().String("proxy-addr", ":8000", "Front-end HTTP proxy listen address")
	runCmd.Flags().String("owner", "", "Username bundles are unpacked and launched under (default: keeper's own user)")
	runCmd.Flags().Int("port-low", router.DefaultPortRange.Low, "Lowest port leased to app children")
	runCmd.Flags().Int("port-high", router.DefaultPortRange.High, "Highest port leased to app children")
	runCmd.Flags().String("remote-tracker", "", "Address of a remote pkg/rpc process tracker; empty runs children locally")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	incomingDir, _ := cmd.Flags().GetString("incoming-dir")
	proxyAddr, _ := cmd.Flags().GetString("proxy-addr")
	ownerName, _ := cmd.Flags().GetString("owner")
	portLow, _ := cmd.Flags().GetInt("port-low")
	portHigh, _ := cmd.Flags().GetInt("port-high")
	remoteTracker, _ := cmd.Flags().GetString("remote-tracker")
	adminAddr, _ := cmd.Root().PersistentFlags().GetString("admin-addr")

	metrics.SetVersion(Version)

	if err := os.MkdirAll(incomingDir, 0o755); err != nil {
		return fmt.Errorf("create incoming dir: %w", err)
	}

	var owner *security.Owner
	if ownerName != "" {
		o, err := security.LookupOwner(ownerName)
		if err != nil {
			return err
		}
		owner = o
	}

	db, err := store.Open(dataDir)
	if err != nil {
		return err
	}
	defer db.Close()
	metrics.RegisterComponent("store", true, "")

	workDirs, err := newWorkDirAllocator(dataDir)
	if err != nil {
		return err
	}

	table := router.New(router.PortRange{Low: portLow, High: portHigh})
	proxy := router.NewProxy(table, proxyAddr)
	metrics.RegisterComponent("router", true, "")
	metrics.RegisterComponent("proxy", true, "")

	tracker, closeTracker, err := buildTracker(remoteTracker)
	if err != nil {
		return err
	}
	defer closeTracker()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	observer := events.NewStateObserver(broker)

	newSup := func(app types.AppName) *supervisor.Supervisor {
		return supervisor.New(app, supervisor.Options{
			Router:   table,
			Tracker:  tracker,
			DB:       staticDBProvisioner{},
			TempDirs: workDirs,
			Owner:    owner,
			Observer: observer,
		})
	}

	reg := newRegistry(db, newSup)

	metrics.Register()
	collector := metrics.NewCollector(reg, table)
	collector.Start()
	defer collector.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := restoreFromStore(ctx, db, reg); err != nil {
		log.Errorf("restore from store failed", err)
	}
	if err := scanIncomingDir(ctx, incomingDir, owner, reg); err != nil {
		log.Errorf("initial incoming-dir scan failed", err)
	}

	watcher, err := newBundleWatcher(incomingDir, owner, reg)
	if err != nil {
		return fmt.Errorf("watch incoming dir: %w", err)
	}
	go watcher.Run(ctx)

	go func() {
		if err := proxy.Start(ctx); err != nil {
			metrics.UpdateComponent("proxy", false, err.Error())
			log.Errorf("proxy server stopped", err)
		}
	}()

	adminServer := api.NewServer(reg, broker)
	adminErrCh := make(chan error, 1)
	go func() {
		if err := adminServer.Start(adminAddr); err != nil {
			adminErrCh <- err
		}
	}()

	log.Info(fmt.Sprintf("keeper running: admin=%s proxy=%s incoming=%s", adminAddr, proxyAddr, incomingDir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-adminErrCh:
		return fmt.Errorf("admin server: %w", err)
	}

	cancel()
	return nil
}

// buildTracker returns the local process tracker, unless remoteAddr names a
// pkg/rpc server, in which case it dials that instead. The returned close
// function tears down the gRPC connection, if any.
func buildTracker(remoteAddr string) (supervisor.ProcessTracker, func(), error) {
	if remoteAddr == "" {
		return proctracker.New(), func() {}, nil
	}

	conn, err := grpc.NewClient(remoteAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial remote tracker %s: %w", remoteAddr, err)
	}
	return rpc.NewClient(conn), func() { conn.Close() }, nil
}

// restoreFromStore re-bootstraps every app the store remembers from a prior
// run, reading the bundle straight from disk per the store's cache-only
// contract.
func restoreFromStore(ctx context.Context, db *store.Store, reg *registry) error {
	names, err := db.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		rec, found, err := db.Get(name)
		if err != nil || !found {
			continue
		}
		if _, err := os.Stat(string(rec.Bundle)); err != nil {
			log.Errorf(fmt.Sprintf("skip restoring %s: bundle no longer present", name), err)
			continue
		}
		if err := reg.Start(ctx, name, rec.Bundle, rec.Owner); err != nil {
			log.Errorf(fmt.Sprintf("restore %s failed", name), err)
		}
	}
	return nil
}

// scanIncomingDir bootstraps any bundle already sitting in incomingDir at
// startup, since fsnotify only reports changes from the moment it starts
// watching.
func scanIncomingDir(ctx context.Context, incomingDir string, owner *security.Owner, reg *registry) error {
	entries, err := os.ReadDir(incomingDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		app := appNameForBundle(entry.Name())
		if app == "" {
			continue
		}
		if _, ok := reg.State(app); ok {
			continue
		}
		bundle := types.BundleRef(filepath.Join(incomingDir, entry.Name()))
		if err := reg.Start(ctx, app, bundle, owner); err != nil {
			log.Errorf(fmt.Sprintf("start %s failed", app), err)
		}
	}
	return nil
}
