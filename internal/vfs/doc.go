// SPDX-License-Identifier: MPL-2.0

// Package vfs implements the per-user virtual filesystem.
//
// A Tree is a rooted hierarchy of Entry values, each either a File holding
// text content or a Directory holding named children. Trees are addressed by
// canonical vpath.Path values and are treated as copy-on-write: Store applies
// every mutation to a deep copy and swaps it in only when the change succeeds.
//
// Store keeps one user's tree in memory and mirrors it into a key-value
// backend under the key "vfs_<username>". Saves run in the background and
// always write the whole tree; failures are reported through a callback while
// the in-memory tree keeps the change.
package vfs
