package mysql

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// MySQL server error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied     = 1044
	errAccessDenied       = 1045
	errHostNotPrivileged  = 1130
	errAccessDeniedNoPass = 1698
	errPasswordExpired    = 1862
)

// mapError converts a go-sql-driver error into an *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(
			classifyMySQLCode(mysqlErr.Number),
			fmt.Sprintf("%s: %s", msg, mysqlErr.Message),
			err,
		)
	}

	if errors.Is(err, mysql.ErrInvalidConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return database.MapError(err, msg)
}

// classifyMySQLCode maps MySQL error numbers to ErrKind. Only login
// rejections are distinguished.
func classifyMySQLCode(code uint16) errs.ErrKind {
	switch code {
	case errDBAccessDenied, errAccessDenied, errAccessDeniedNoPass, errPasswordExpired, errHostNotPrivileged:
		return errs.ErrKindPermissionDenied
	default:
		// too many connections, unknown database, server shutdown, ...
		return errs.ErrKindConnectionFailed
	}
}
