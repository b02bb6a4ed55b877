// SPDX-License-Identifier: MPL-2.0

// Package issue builds user-facing errors for startup and administration
// failures: what was being done, on which resource, and what to try next.
package issue
