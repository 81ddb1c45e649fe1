package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrUniqueViolation reports that a unique constraint rejected the write.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrForeignKeyViolation reports that a referenced row is missing or still referenced.
	ErrForeignKeyViolation = errors.New("foreign key violation")
)

const (
	pqUniqueViolation     pq.ErrorCode = "23505"
	pqForeignKeyViolation pq.ErrorCode = "23503"
)

// classify maps Postgres constraint failures onto repository sentinels while
// keeping the driver error in the chain.
func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return errors.Join(ErrUniqueViolation, err)
	case pqForeignKeyViolation:
		return errors.Join(ErrForeignKeyViolation, err)
	default:
		return err
	}
}
