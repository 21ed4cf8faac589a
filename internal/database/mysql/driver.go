// Package mysql opens MySQL sources and connections through
// go-sql-driver/mysql. Candidate URLs are DSNs without the user:password@
// prefix; credentials are set on the parsed config.
package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// DriverName is the database/sql name go-sql-driver registers.
const DriverName = "mysql"

// Open returns a pooled source for dsn as cred. No connection is dialed
// until the first Acquire.
func Open(_ context.Context, dsn string, cred database.Credentials, cfg database.SourceConfig) (database.Source, error) {
	db, err := openDB(dsn, cred, cfg.WithDefaults().ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return database.NewSQLSource(db, cfg, classifier(cred)), nil
}

// Connect dials a single unpooled connection.
func Connect(ctx context.Context, dsn string, cred database.Credentials, timeout time.Duration) (database.Conn, error) {
	db, err := openDB(dsn, cred, timeout)
	if err != nil {
		return nil, err
	}
	return database.OpenDirect(ctx, db, timeout, classifier(cred))
}

func openDB(dsn string, cred database.Credentials, timeout time.Duration) (*sql.DB, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid mysql DSN", err)
	}
	c.User = cred.Username
	c.Passwd = cred.Password
	c.ParseTime = true
	if c.Timeout == 0 {
		c.Timeout = timeout
	}

	connector, err := mysql.NewConnector(c)
	if err != nil {
		return nil, classifier(cred)(err, "invalid mysql config")
	}
	return sql.OpenDB(connector), nil
}

func classifier(cred database.Credentials) database.Classifier {
	return database.ScrubClassifier(mapError, cred.Password)
}
