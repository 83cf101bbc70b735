// Package repository provides PostgreSQL persistence for users, their
// metadata and permission edges, and the resources they own.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/atinyakov/GuardPine/internal/common"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// mapError translates driver errors into the common taxonomy and prefixes
// them with op.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, common.ErrAlreadyExists)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w: referenced user does not exist", op, common.ErrValidation)
		case pqCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, common.ErrValidation, pqErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireAffected returns common.ErrNotFound when res reports no affected rows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
