package db

import "strings"

// IsUniqueViolation reports whether err is a unique constraint violation on
// one of the named constraints. Postgres reports the index name while sqlite
// reports the qualified column list, so callers pass every form they expect.
// An error violating some other unique constraint is not matched; those must
// surface to the caller instead of being absorbed as duplicates.
func IsUniqueViolation(err error, constraints ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") &&
		!strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	for _, name := range constraints {
		if name != "" && strings.Contains(msg, name) {
			return true
		}
	}
	return false
}
