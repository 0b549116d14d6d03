// Package store defines interfaces for persisting session snapshots.
// Implementations live in other packages; this package must not import
// concrete backends.
package store
