// Package storage implements beekeeper's record stores.
//
// Every table satisfies Table: create, read, patch, update, delete, all safe for
// concurrent use. The in-memory tables guard their rows and any derived indexes with a
// single lock, so a reader never observes a primary-table change without the matching
// index change. A mutation that panics poisons its table; that call and every later one
// fail with fault.ErrLockPoisoned instead of taking the process down.
//
// DB bundles the in-memory tables into one process-scoped handle. PostgresPrincipals is
// the pgx-backed alternative for principals.
package storage
