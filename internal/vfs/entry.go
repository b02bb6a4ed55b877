// SPDX-License-Identifier: MPL-2.0

package vfs

import (
	"maps"
	"slices"
)

type (
	// Entry is a node of the tree: either File or *Directory.
	Entry interface {
		isEntry()
	}

	// File is a leaf holding raw text.
	File struct {
		Content string
	}

	// Directory maps child names to entries.
	Directory struct {
		Children map[string]Entry
	}
)

func (File) isEntry()       {}
func (*Directory) isEntry() {}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{Children: make(map[string]Entry)}
}

// Names returns the child names in lexical order.
func (d *Directory) Names() []string {
	return slices.Sorted(maps.Keys(d.Children))
}

// Len returns the number of children.
func (d *Directory) Len() int {
	return len(d.Children)
}

// IsDir reports whether e is a directory.
func IsDir(e Entry) bool {
	_, ok := e.(*Directory)
	return ok
}

// cloneEntry deep-copies e so the result shares no directory with the input.
func cloneEntry(e Entry) Entry {
	switch v := e.(type) {
	case *Directory:
		out := &Directory{Children: make(map[string]Entry, len(v.Children))}
		for name, child := range v.Children {
			out.Children[name] = cloneEntry(child)
		}
		return out
	case File:
		return v
	default:
		return nil
	}
}
