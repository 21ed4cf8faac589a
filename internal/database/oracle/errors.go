package oracle

import (
	"errors"
	"fmt"

	"github.com/sijms/go-ora/v2/network"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// ORA- codes raised while establishing a session.
const (
	oraInvalidLogin    = 1017
	oraAccountLocked   = 28000
	oraPasswordExpired = 28001
	oraNoCreateSession = 1045
)

func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		kind := errs.ErrKindConnectionFailed
		switch oraErr.ErrCode {
		case oraInvalidLogin, oraAccountLocked, oraPasswordExpired, oraNoCreateSession:
			kind = errs.ErrKindPermissionDenied
		}
		// ORA-12514 unknown service, ORA-12505 unknown SID and ORA-12541
		// no listener all fall through as connection failures.
		return errs.Wrap(kind, fmt.Sprintf("%s: ORA-%05d", msg, oraErr.ErrCode), err)
	}

	return database.MapError(err, msg)
}
