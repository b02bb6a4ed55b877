// SPDX-License-Identifier: MPL-2.0

// Package kvstore provides the string-to-JSON blob store that backs user
// filesystems and preferences.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrEmptyKey is returned when an operation is given an empty key.
var ErrEmptyKey = errors.New("empty key")

type (
	// Store maps string keys to JSON documents.
	Store interface {
		// Get returns the value stored under key; found is false if absent.
		Get(ctx context.Context, key string) (value json.RawMessage, found bool, err error)
		// Put stores value under key, replacing any previous value.
		Put(ctx context.Context, key string, value json.RawMessage) error
		// Delete removes key. Deleting an absent key is not an error.
		Delete(ctx context.Context, key string) error
		// Keys lists the keys starting with prefix in lexical order.
		Keys(ctx context.Context, prefix string) ([]string, error)
	}

	// Memory is an in-process Store used by tests and the local REPL.
	Memory struct {
		mu   sync.RWMutex
		data map[string]json.RawMessage
	}
)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]json.RawMessage)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	if !json.Valid(value) {
		return fmt.Errorf("put %s: value is not valid JSON", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = slices.Clone(value)
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys implements Store.
func (m *Memory) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for _, k := range slices.Sorted(maps.Keys(m.data)) {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
