// SPDX-License-Identifier: MPL-2.0

package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fauxterm/fauxterm/pkg/vpath"
)

// KeyPrefix prefixes the key-value key under which a user's tree is stored.
const KeyPrefix = "vfs_"

var (
	// ErrNotLoaded is returned when the store has no tree for the session.
	ErrNotLoaded = errors.New("filesystem not loaded")
	// ErrRejected is returned by Mutate when the tree refused the change.
	ErrRejected = errors.New("change rejected")
)

type (
	// KeyValueStore is the blob store backing the filesystem.
	KeyValueStore interface {
		// Get returns the value for key; found is false when key is absent.
		Get(ctx context.Context, key string) (value json.RawMessage, found bool, err error)
		// Put stores value under key, replacing any previous value.
		Put(ctx context.Context, key string, value json.RawMessage) error
	}

	// PersistErrorFunc receives background save failures.
	PersistErrorFunc func(owner string, err error)

	// Option configures a Store.
	Option func(*Store)

	// Store holds one session's view of a user's tree.
	// It is safe for concurrent use.
	Store struct {
		kv        KeyValueStore
		logger    *slog.Logger
		onPersist PersistErrorFunc

		mu    sync.RWMutex
		owner string
		tree  *Tree

		saveMu sync.Mutex
		saves  sync.WaitGroup
	}
)

// Key returns the key-value key for username's tree.
func Key(username string) string {
	return KeyPrefix + username
}

// WithLogger sets the logger used for background save failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPersistErrorHandler registers the side channel for save failures.
func WithPersistErrorHandler(fn PersistErrorFunc) Option {
	return func(s *Store) { s.onPersist = fn }
}

// NewStore creates a Store over kv. Nothing is loaded until Load is called.
func NewStore(kv KeyValueStore, opts ...Option) *Store {
	s := &Store{kv: kv, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads username's tree. When nothing is stored yet, the default tree is
// created and persisted before Load returns.
func (s *Store) Load(ctx context.Context, username string) error {
	s.saves.Wait()

	raw, found, err := s.kv.Get(ctx, Key(username))
	if err != nil {
		return fmt.Errorf("loading filesystem for %s: %w", username, err)
	}

	var tree *Tree
	if found {
		if tree, err = DecodeTree(raw); err != nil {
			return fmt.Errorf("loading filesystem for %s: %w", username, err)
		}
	} else {
		tree = DefaultTree()
		data, err := json.Marshal(tree)
		if err != nil {
			return fmt.Errorf("encoding default filesystem: %w", err)
		}
		if err := s.kv.Put(ctx, Key(username), data); err != nil {
			return fmt.Errorf("saving default filesystem for %s: %w", username, err)
		}
	}

	s.mu.Lock()
	s.owner = username
	s.tree = tree
	s.mu.Unlock()
	return nil
}

// Unload drops the in-memory tree after pending saves have finished.
func (s *Store) Unload() {
	s.saves.Wait()
	s.mu.Lock()
	s.owner = ""
	s.tree = nil
	s.mu.Unlock()
}

// Loaded reports whether a tree is available.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree != nil
}

// Owner returns the username whose tree is loaded.
func (s *Store) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Snapshot returns the current tree. Trees are replaced, never edited in
// place, so the result stays consistent while the caller reads it.
func (s *Store) Snapshot() (*Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree == nil {
		return nil, ErrNotLoaded
	}
	return s.tree, nil
}

// Get returns the entry at p in the current tree.
func (s *Store) Get(p vpath.Path) (Entry, bool) {
	t, err := s.Snapshot()
	if err != nil {
		return nil, false
	}
	return t.Get(p)
}

// Mutate applies fn to a deep copy of the current tree. If fn returns nil the
// copy replaces the current tree and a background save is started; otherwise
// the current tree is left untouched and fn's error is returned.
func (s *Store) Mutate(ctx context.Context, fn func(*Tree) error) error {
	s.mu.Lock()
	if s.tree == nil {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	draft := s.tree.Clone()
	if err := fn(draft); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tree = draft
	owner := s.owner
	s.saves.Add(1)
	s.mu.Unlock()

	go s.persist(context.WithoutCancel(ctx), owner)
	return nil
}

// Wait blocks until every background save started so far has finished.
func (s *Store) Wait() {
	s.saves.Wait()
}

// persist writes the latest tree for owner. Saves are serialized and each one
// writes whatever is current when it runs, so the last save always carries
// the newest state.
func (s *Store) persist(ctx context.Context, owner string) {
	defer s.saves.Done()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	tree, current := s.tree, s.owner
	s.mu.RUnlock()
	if tree == nil || current != owner {
		return
	}

	data, err := json.Marshal(tree)
	if err == nil {
		err = s.kv.Put(ctx, Key(owner), data)
	}
	if err != nil {
		s.logger.Warn("filesystem save failed", "user", owner, "error", err)
		if s.onPersist != nil {
			s.onPersist(owner, err)
		}
	}
}
