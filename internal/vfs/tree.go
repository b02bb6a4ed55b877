// SPDX-License-Identifier: MPL-2.0

package vfs

import (
	"errors"
	"io/fs"

	"github.com/fauxterm/fauxterm/pkg/vpath"
)

// WelcomeText is the content of the README.md placed in every new tree.
const WelcomeText = `Welcome to fauxterm!

This is your home directory. Everything you create here is saved
to your account and comes back the next time you log in.

Try:
  help          list the available commands
  ls            see what is here
  mkdir notes   make a directory
  cat README.md read this file again
`

// SkipDir can be returned from a WalkFunc to skip the directory's children.
var SkipDir = fs.SkipDir

type (
	// Tree is a virtual filesystem rooted at vpath.Root.
	Tree struct {
		root *Directory
	}

	// WalkFunc is called for every entry visited by Walk.
	WalkFunc func(p vpath.Path, e Entry) error
)

// NewTree returns a tree with an empty root directory.
func NewTree() *Tree {
	return &Tree{root: NewDirectory()}
}

// DefaultTree returns the tree given to users on first access.
func DefaultTree() *Tree {
	t := NewTree()
	t.root.Children["README.md"] = File{Content: WelcomeText}
	return t
}

// Root returns the root directory.
func (t *Tree) Root() *Directory {
	return t.root
}

// Clone returns a deep copy of t.
func (t *Tree) Clone() *Tree {
	return &Tree{root: cloneEntry(t.root).(*Directory)}
}

// Get returns the entry at p. It reports false as soon as a segment is
// missing or a file is traversed as if it were a directory.
func (t *Tree) Get(p vpath.Path) (Entry, bool) {
	var cur Entry = t.root
	for _, seg := range p.Segments() {
		dir, ok := cur.(*Directory)
		if !ok {
			return nil, false
		}
		cur, ok = dir.Children[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// List returns the sorted child names of the directory at p. It reports
// false when p is missing or is a file.
func (t *Tree) List(p vpath.Path) ([]string, bool) {
	e, ok := t.Get(p)
	if !ok {
		return nil, false
	}
	dir, ok := e.(*Directory)
	if !ok {
		return nil, false
	}
	return dir.Names(), true
}

// Set stores a copy of e at p, replacing any existing entry of either kind.
// The root cannot be replaced, and every ancestor of p must already exist as
// a directory; intermediate directories are never created.
func (t *Tree) Set(p vpath.Path, e Entry) bool {
	if e == nil {
		return false
	}
	parent, name, ok := t.parentOf(p)
	if !ok {
		return false
	}
	parent.Children[name] = cloneEntry(e)
	return true
}

// Delete removes the entry at p. It fails for the root and for names that do
// not exist. Whether a non-empty directory may be removed is the caller's
// decision.
func (t *Tree) Delete(p vpath.Path) bool {
	parent, name, ok := t.parentOf(p)
	if !ok {
		return false
	}
	if _, exists := parent.Children[name]; !exists {
		return false
	}
	delete(parent.Children, name)
	return true
}

// Walk visits p and everything below it depth-first, children in lexical
// order. Returning SkipDir from fn for a directory skips its children; any
// other error stops the walk and is returned.
func (t *Tree) Walk(p vpath.Path, fn WalkFunc) error {
	e, ok := t.Get(p)
	if !ok {
		return &fs.PathError{Op: "walk", Path: p.String(), Err: fs.ErrNotExist}
	}
	err := walk(p, e, fn)
	if errors.Is(err, SkipDir) {
		return nil
	}
	return err
}

func walk(p vpath.Path, e Entry, fn WalkFunc) error {
	if err := fn(p, e); err != nil {
		return err
	}
	dir, ok := e.(*Directory)
	if !ok {
		return nil
	}
	for _, name := range dir.Names() {
		err := walk(p.Join(name), dir.Children[name], fn)
		if err != nil && !errors.Is(err, SkipDir) {
			return err
		}
	}
	return nil
}

// parentOf returns the directory holding p and p's final name.
func (t *Tree) parentOf(p vpath.Path) (*Directory, string, bool) {
	parentPath, name := p.Split()
	if name == "" {
		return nil, "", false
	}
	e, ok := t.Get(parentPath)
	if !ok {
		return nil, "", false
	}
	dir, ok := e.(*Directory)
	if !ok {
		return nil, "", false
	}
	return dir, name, true
}
