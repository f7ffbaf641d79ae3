// Package repository provides data access layer implementations for the engine.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
)

// isUniqueViolation detects unique-index violations across Postgres and
// SQLite. GORM's error translation does not cover raw statements, so match on
// the driver message as well.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// isTransient reports whether an error looks like a temporary infrastructure
// failure worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"too many connections",
		"database is locked",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

const (
	retryAttempts = 3
	retryBackoff  = 50 * time.Millisecond
)

// withRetry runs op, retrying transient failures with linear backoff.
// Logical errors (not found, unique violations) are returned immediately.
func withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
		err = op()
		if err == nil || !isTransient(err) {
			return err
		}
	}
	return err
}
