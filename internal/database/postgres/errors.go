package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// mapError converts a pgx error into an *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	if pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	return database.MapError(err, msg)
}

// classifySQLState maps a SQLSTATE to ErrKind. Class 28 (invalid
// authorization specification) is a login rejection; everything else seen
// while establishing a session, class 08 included, means the endpoint did
// not serve us.
func classifySQLState(code string) errs.ErrKind {
	if strings.HasPrefix(code, "28") {
		return errs.ErrKindPermissionDenied
	}
	return errs.ErrKindConnectionFailed
}
