package generic

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// mapError understands lib/pq's error type and otherwise defers to the
// shared classification.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		kind := errs.ErrKindConnectionFailed
		if pqErr.Code.Class() == "28" {
			kind = errs.ErrKindPermissionDenied
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, pqErr.Message), err)
	}

	return database.MapError(err, msg)
}
