// SPDX-License-Identifier: MPL-2.0

package vfs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fauxterm/fauxterm/pkg/vpath"
)

// ErrMalformedTree is returned when stored tree data cannot be decoded.
var ErrMalformedTree = errors.New("malformed filesystem tree")

// MarshalJSON encodes the tree in its stored form: {"~": {...}} where string
// values are files and object values are directories.
func (t *Tree) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{string(vpath.Root): encodeDir(t.root)})
}

// DecodeTree decodes a stored tree. Every failure, including input that is
// not JSON at all, wraps ErrMalformedTree.
func DecodeTree(data []byte) (*Tree, error) {
	t := NewTree()
	if err := t.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return t, nil
}

// UnmarshalJSON decodes the stored form produced by MarshalJSON.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedTree, err)
	}
	raw, ok := top[string(vpath.Root)]
	if !ok {
		return fmt.Errorf("%w: missing %q root", ErrMalformedTree, vpath.Root)
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return err
	}
	root, ok := e.(*Directory)
	if !ok {
		return fmt.Errorf("%w: root is not a directory", ErrMalformedTree)
	}
	t.root = root
	return nil
}

func encodeDir(d *Directory) map[string]any {
	out := make(map[string]any, len(d.Children))
	for name, child := range d.Children {
		switch v := child.(type) {
		case File:
			out[name] = v.Content
		case *Directory:
			out[name] = encodeDir(v)
		}
	}
	return out
}

func decodeEntry(raw json.RawMessage) (Entry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrMalformedTree)
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedTree, err)
		}
		return File{Content: s}, nil
	case '{':
		var children map[string]json.RawMessage
		if err := json.Unmarshal(raw, &children); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedTree, err)
		}
		dir := &Directory{Children: make(map[string]Entry, len(children))}
		for name, childRaw := range children {
			if name == "" || name == "." || name == ".." {
				return nil, fmt.Errorf("%w: invalid entry name %q", ErrMalformedTree, name)
			}
			child, err := decodeEntry(childRaw)
			if err != nil {
				return nil, err
			}
			dir.Children[name] = child
		}
		return dir, nil
	default:
		return nil, fmt.Errorf("%w: unexpected value %.20s", ErrMalformedTree, raw)
	}
}
