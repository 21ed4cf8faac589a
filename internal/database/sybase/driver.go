// Package sybase opens Sybase ASE and Netcool ObjectServer sources through
// thda/tds. Both speak TDS 5.0 and share candidate URLs of the form
// tds://host:port/db?charset=utf8.
package sybase

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	_ "github.com/thda/tds" // register "tds" driver

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

const DriverName = "tds"

// Open returns a pooled source for rawURL as cred.
func Open(_ context.Context, rawURL string, cred database.Credentials, cfg database.SourceConfig) (database.Source, error) {
	db, err := openDB(rawURL, cred)
	if err != nil {
		return nil, err
	}
	return database.NewSQLSource(db, cfg, classifier(cred)), nil
}

// Connect dials a single unpooled connection.
func Connect(ctx context.Context, rawURL string, cred database.Credentials, timeout time.Duration) (database.Conn, error) {
	db, err := openDB(rawURL, cred)
	if err != nil {
		return nil, err
	}
	return database.OpenDirect(ctx, db, timeout, classifier(cred))
}

func openDB(rawURL string, cred database.Credentials) (*sql.DB, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != DriverName || u.Host == "" {
		return nil, errs.New(errs.ErrKindConnectionFailed, "invalid tds url")
	}
	u.User = url.UserPassword(cred.Username, cred.Password)

	db, err := sql.Open(DriverName, u.String())
	if err != nil {
		return nil, classifier(cred)(err, "invalid tds config")
	}
	return db, nil
}

// thda/tds reports server messages as text, so classification relies on
// database.MapError's login markers.
func classifier(cred database.Credentials) database.Classifier {
	return database.ScrubClassifier(database.MapError, cred.Password)
}
