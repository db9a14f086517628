package gormstore

import (
	stderrors "errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/kbukum/viewkit/errors"
)

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"network is unreachable",
	"driver: bad connection",
	"database is closed",
}

var retryablePatterns = []string{
	"deadlock",
	"lock timeout",
	"database is locked",
	"too many connections",
}

func containsAny(err error, patterns []string) bool {
	s := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// fromDatabase translates a GORM or driver error into an AppError.
func fromDatabase(err error, resource string) *errors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}

	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.NotFound(resource, "").WithCause(err)
	case stderrors.Is(err, gorm.ErrDuplicatedKey), strings.Contains(strings.ToLower(err.Error()), "unique constraint"):
		return errors.Conflict("a "+resource+" with these details already exists").WithCause(err)
	case containsAny(err, connectionPatterns):
		return errors.ServiceUnavailable("database").WithCause(err)
	case containsAny(err, retryablePatterns):
		return errors.New(errors.ErrCodeDatabaseError, "Database operation failed. Please try again.", http.StatusServiceUnavailable).
			WithCause(err)
	default:
		return errors.DatabaseError(err)
	}
}
