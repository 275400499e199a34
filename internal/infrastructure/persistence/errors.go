package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// translateError maps driver errors onto the domain sentinels. Serialization
// failures, deadlocks and lock timeouts become ErrConcurrencyConflict so the
// caller can retry the whole transaction.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	var validationErr *shared.ValidationError
	if errors.As(err, &domainErr) || errors.As(err, &validationErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", shared.ErrAlreadyExists, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.LockNotAvailable:
			return fmt.Errorf("%w: %s", shared.ErrConcurrencyConflict, pgErr.Message)
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w: %s", shared.ErrAlreadyExists, pgErr.ConstraintName)
		}
		return err
	}

	// sqlite reports through plain error strings
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", shared.ErrAlreadyExists, msg)
	case strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%w: %s", shared.ErrConcurrencyConflict, msg)
	}
	return err
}
