// Package mssql opens SQL Server sources through microsoft/go-mssqldb.
// Candidate URLs are sqlserver:// URLs without userinfo; credentials are
// injected before the connector is built.
package mssql

import (
	"context"
	"database/sql"
	"net/url"
	"strconv"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// DriverName is the database/sql name go-mssqldb registers for URL DSNs.
const DriverName = "sqlserver"

// Open returns a pooled source for rawURL as cred.
func Open(_ context.Context, rawURL string, cred database.Credentials, cfg database.SourceConfig) (database.Source, error) {
	db, err := openDB(rawURL, cred, cfg.WithDefaults().ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return database.NewSQLSource(db, cfg, classifier(cred)), nil
}

// Connect dials a single unpooled connection.
func Connect(ctx context.Context, rawURL string, cred database.Credentials, timeout time.Duration) (database.Conn, error) {
	db, err := openDB(rawURL, cred, timeout)
	if err != nil {
		return nil, err
	}
	return database.OpenDirect(ctx, db, timeout, classifier(cred))
}

func openDB(rawURL string, cred database.Credentials, timeout time.Duration) (*sql.DB, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != DriverName {
		return nil, errs.New(errs.ErrKindConnectionFailed, "invalid sqlserver url")
	}
	u.User = url.UserPassword(cred.Username, cred.Password)

	q := u.Query()
	if q.Get("dial timeout") == "" && timeout > 0 {
		q.Set("dial timeout", formatSeconds(timeout))
		u.RawQuery = q.Encode()
	}

	connector, err := mssql.NewConnector(u.String())
	if err != nil {
		return nil, classifier(cred)(err, "invalid sqlserver config")
	}
	return sql.OpenDB(connector), nil
}

func classifier(cred database.Credentials) database.Classifier {
	return database.ScrubClassifier(mapError, cred.Password)
}

func formatSeconds(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
