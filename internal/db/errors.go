package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"quizcoach-backend/internal/apperr"
	"quizcoach-backend/utilities"
)

// ErrVersionConflict is returned when an optimistic update lost the race.
var ErrVersionConflict = apperr.New(apperr.KindConflict, "record was modified concurrently")

const uniqueViolation = "23505"

// Wrap classifies a gorm error into the apperr taxonomy. Errors that are
// already classified pass through unchanged.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.KindNotFound, err, op)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.KindConflict, err, op)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindStoreUnavailable, err, op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		utilities.Error("datastore error", "op", op, "sqlstate", pgErr.Code, "detail", pgErr.Detail)
		if pgErr.Code == uniqueViolation {
			return apperr.Wrap(apperr.KindConflict, err, op)
		}
	} else {
		utilities.Error("datastore error", "op", op, "error", err)
	}
	return apperr.Wrap(apperr.KindStoreUnavailable, err, op)
}
