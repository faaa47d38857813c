// Package shared provides cross-cutting helpers used by the store and
// background workers.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// IsSQLiteConflictError checks if the error is a SQLite concurrency error
// (SQLITE_BUSY or "database is locked"). Both typically warrant retry
// logic rather than failure.
func IsSQLiteConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// IsSQLiteConstraintError checks if the error is a SQLite constraint
// violation, typically a UNIQUE conflict on concurrent inserts.
func IsSQLiteConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}
