package mssql

import (
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// SQL Server error numbers raised during login.
const (
	errLoginFailed        = 18456
	errCannotOpenDatabase = 4060
	errPasswordExpired    = 18487
	errPasswordMustChange = 18488
	errLoginFromUntrusted = 18452
)

func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var srvErr mssql.Error
	if errors.As(err, &srvErr) {
		kind := errs.ErrKindConnectionFailed
		switch srvErr.Number {
		case errLoginFailed, errCannotOpenDatabase, errPasswordExpired, errPasswordMustChange, errLoginFromUntrusted:
			kind = errs.ErrKindPermissionDenied
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, srvErr.Message), err)
	}

	return database.MapError(err, msg)
}
