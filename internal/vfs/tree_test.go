// SPDX-License-Identifier: MPL-2.0

package vfs

import (
	"errors"
	"testing"

	"github.com/fauxterm/fauxterm/pkg/vpath"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()

	tree := DefaultTree()
	docs := NewDirectory()
	docs.Children["a.txt"] = File{Content: "alpha"}
	tree.Root().Children["docs"] = docs
	tree.Root().Children["empty"] = NewDirectory()
	return tree
}

func TestDefaultTree(t *testing.T) {
	t.Parallel()

	tree := DefaultTree()
	if got := tree.Root().Names(); len(got) != 1 || got[0] != "README.md" {
		t.Fatalf("default root = %v, want [README.md]", got)
	}
	e, ok := tree.Get("/README.md")
	if !ok {
		t.Fatal("README.md should exist")
	}
	if f, isFile := e.(File); !isFile || f.Content != WelcomeText {
		t.Errorf("README.md = %#v, want welcome text", e)
	}
}

func TestTree_Get(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)

	tests := []struct {
		name    string
		path    vpath.Path
		wantOK  bool
		wantDir bool
	}{
		{name: "root", path: vpath.Root, wantOK: true, wantDir: true},
		{name: "directory", path: "/docs", wantOK: true, wantDir: true},
		{name: "file", path: "/docs/a.txt", wantOK: true},
		{name: "missing", path: "/nope", wantOK: false},
		{name: "missing nested", path: "/docs/nope/deeper", wantOK: false},
		{name: "through a file", path: "/README.md/child", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, ok := tree.Get(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Get(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && IsDir(e) != tt.wantDir {
				t.Errorf("Get(%q) dir = %v, want %v", tt.path, IsDir(e), tt.wantDir)
			}
		})
	}
}

func TestTree_SetRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path  vpath.Path
		value Entry
	}{
		{path: "/new.txt", value: File{Content: "hello"}},
		{path: "/docs/b.txt", value: File{Content: "beta"}},
		{path: "/docs/a.txt", value: File{Content: "replaced"}},
		{path: "/docs", value: File{Content: "dir replaced by file"}},
		{path: "/empty/sub", value: NewDirectory()},
	}

	for _, tt := range tests {
		tree := newTestTree(t)
		if !tree.Set(tt.path, tt.value) {
			t.Errorf("Set(%q) failed", tt.path)
			continue
		}
		got, ok := tree.Get(tt.path)
		if !ok {
			t.Errorf("Get(%q) after Set found nothing", tt.path)
			continue
		}
		if f, isFile := tt.value.(File); isFile && got != Entry(f) {
			t.Errorf("Get(%q) = %#v, want %#v", tt.path, got, f)
		}
		if IsDir(tt.value) != IsDir(got) {
			t.Errorf("Get(%q) kind mismatch", tt.path)
		}
	}
}

func TestTree_SetRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path vpath.Path
	}{
		{name: "root", path: vpath.Root},
		{name: "missing parent", path: "/a/b/c.txt"},
		{name: "parent is a file", path: "/README.md/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tree := newTestTree(t)
			before := tree.Clone()
			if tree.Set(tt.path, File{Content: "x"}) {
				t.Fatalf("Set(%q) should fail", tt.path)
			}
			assertTreesEqual(t, before, tree)
		})
	}
}

func TestTree_SetCopiesDirectories(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	shared := NewDirectory()
	if !tree.Set("/one", shared) {
		t.Fatal("Set(/one) failed")
	}
	shared.Children["leak"] = File{}

	if _, ok := tree.Get("/one/leak"); ok {
		t.Error("Set must store a copy, not the caller's directory")
	}
}

func TestTree_Delete(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)

	if tree.Delete(vpath.Root) {
		t.Error("Delete(root) should fail")
	}
	if _, ok := tree.Get(vpath.Root); !ok {
		t.Error("root must survive a Delete attempt")
	}
	if tree.Delete("/nope") {
		t.Error("Delete of a missing entry should fail")
	}
	if tree.Delete("/README.md/x") {
		t.Error("Delete below a file should fail")
	}
	if !tree.Delete("/docs") {
		t.Fatal("Delete(/docs) should succeed")
	}
	if _, ok := tree.Get("/docs/a.txt"); ok {
		t.Error("children of a deleted directory should be gone")
	}
}

func TestTree_CloneIsDeep(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	clone := tree.Clone()
	clone.Set("/docs/c.txt", File{Content: "c"})
	clone.Delete("/README.md")

	if _, ok := tree.Get("/docs/c.txt"); ok {
		t.Error("mutating the clone changed the original")
	}
	if _, ok := tree.Get("/README.md"); !ok {
		t.Error("deleting from the clone changed the original")
	}
}

func TestTree_Walk(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)

	var visited []vpath.Path
	err := tree.Walk(vpath.Root, func(p vpath.Path, _ Entry) error {
		visited = append(visited, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	want := []vpath.Path{vpath.Root, "/README.md", "/docs", "/docs/a.txt", "/empty"}
	if len(visited) != len(want) {
		t.Fatalf("Walk visited %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Errorf("visit[%d] = %q, want %q", i, visited[i], want[i])
		}
	}

	var skipped []vpath.Path
	_ = tree.Walk(vpath.Root, func(p vpath.Path, e Entry) error {
		skipped = append(skipped, p)
		if p == "/docs" {
			return SkipDir
		}
		return nil
	})
	for _, p := range skipped {
		if p == "/docs/a.txt" {
			t.Error("SkipDir should prevent visiting /docs children")
		}
	}

	stop := errors.New("stop")
	if err := tree.Walk(vpath.Root, func(vpath.Path, Entry) error { return stop }); !errors.Is(err, stop) {
		t.Errorf("Walk() error = %v, want %v", err, stop)
	}

	if err := tree.Walk("/missing", func(vpath.Path, Entry) error { return nil }); err == nil {
		t.Error("Walk of a missing path should fail")
	}
}

func TestTree_List(t *testing.T) {
	t.Parallel()

	tree := newTestTree(t)
	got, ok := tree.List(vpath.Root)
	if !ok {
		t.Fatal("List(root) should succeed")
	}
	want := []string{"README.md", "docs", "empty"}
	if len(got) != len(want) {
		t.Fatalf("List(root) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List(root)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if _, ok := tree.List("/README.md"); ok {
		t.Error("List(file) should fail")
	}
	if _, ok := tree.List("/missing"); ok {
		t.Error("List(missing) should fail")
	}
}
