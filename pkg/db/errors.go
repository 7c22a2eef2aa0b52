package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique constraint
// violation. Postgres reports the constraint name while SQLite reports the
// column list, so the named constraint is one signal among the generic ones.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
