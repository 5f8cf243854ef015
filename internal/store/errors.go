package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid marks a write rejected because its input fails validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict marks a write whose client-supplied id is already used by
// another household.
var ErrConflict = errors.New("conflict")

// ErrDuplicate marks an insert that collides with a unique key.
var ErrDuplicate = errors.New("duplicate")

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// checkUpserted reports ErrConflict when an upsert guarded on household_id
// wrote nothing, which only happens when the id belongs to another household.
func checkUpserted(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s is used by another household", ErrConflict, id)
	}
	return nil
}
