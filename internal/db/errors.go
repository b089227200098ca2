package db

import (
	"errors"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for store operations. Check with errors.Is().
var (
	// ErrStorageUnavailable indicates the backing store cannot be reached
	// (transport failure, closed connection). Locally retryable; callers
	// degrade per their policy instead of failing the whole command.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSchemaViolation indicates a record that does not fit the
	// collection's configured schema, typically an embedding whose
	// dimension differs from the collection's index dimension.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// wrapQueryError classifies a SurrealDB error. Database-level query errors
// pass through with their message; anything else (dead connection, timeout,
// protocol failure) counts as the store being unavailable.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		return err
	}

	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
