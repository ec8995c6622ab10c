package store

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when no movie has the requested id.
var ErrNotFound = errors.New("movie not found")

// UniqueViolation is returned when an insert or update collides with an
// existing row on title, rating or img_url.
type UniqueViolation struct {
	Field string
	Err   error
}

func (e *UniqueViolation) Error() string {
	if e.Field == "" {
		return "duplicate value"
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}

func (e *UniqueViolation) Unwrap() error { return e.Err }

// IsUniqueViolation reports whether err is (or wraps) a *UniqueViolation.
func IsUniqueViolation(err error) bool {
	var uv *UniqueViolation
	return errors.As(err, &uv)
}

const uniqueFailedPrefix = "UNIQUE constraint failed: "

// classify turns a driver constraint error into a *UniqueViolation and
// leaves everything else untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	unique := strings.Contains(msg, uniqueFailedPrefix)

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			unique = true
		}
	}
	if !unique {
		return err
	}

	return &UniqueViolation{Field: uniqueField(msg), Err: err}
}

// uniqueField extracts the column from "UNIQUE constraint failed: movies_model.title".
func uniqueField(msg string) string {
	i := strings.Index(msg, uniqueFailedPrefix)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(uniqueFailedPrefix):]
	if j := strings.IndexAny(rest, " ,("); j >= 0 {
		rest = rest[:j]
	}
	if k := strings.LastIndex(rest, "."); k >= 0 {
		rest = rest[k+1:]
	}
	return rest
}
