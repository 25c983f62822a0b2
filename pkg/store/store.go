// Package store persists the app registry the daemon needs to survive a
// restart: for each known AppName, the last bundle path it was started or
// reloaded from and the Owner it runs under. It is a cache, not a source of
// truth — the bundle directory on disk remains authoritative.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/keeper/pkg/security"
	"github.com/cuemby/keeper/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketApps = []byte("apps")

// Record is what the store keeps per app between daemon restarts.
type Record struct {
	Bundle types.BundleRef
	Owner  *security.Owner
}

// Store persists Records keyed by AppName in a single BoltDB file.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the registry database under dataDir.
func Open(dataDir string) (*Store, error) {
	path := filepath.Join(dataDir, "keeper.db")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketApps)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create apps bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put upserts the Record for app.
func (s *Store) Put(app types.AppName, rec Record) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketApps).Put([]byte(app), data)
	})
}

// Get returns the Record for app and whether it was found.
func (s *Store) Get(app types.AppName) (Record, bool, error) {
	var rec Record
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketApps).Get([]byte(app))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// Delete removes the Record for app, if any.
func (s *Store) Delete(app types.AppName) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketApps).Delete([]byte(app))
	})
}

// List returns every known AppName, in no particular order.
func (s *Store) List() ([]types.AppName, error) {
	var names []types.AppName
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketApps).ForEach(func(k, v []byte) error {
			names = append(names, types.AppName(k))
			return nil
		})
	})
	return names, err
}
