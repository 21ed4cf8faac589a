// Package oracle opens Oracle sources through sijms/go-ora, a pure Go
// client. Candidate URLs are oracle:// URLs without userinfo, addressing
// either a service name (path) or a SID (?SID=).
package oracle

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	_ "github.com/sijms/go-ora/v2" // register "oracle" driver

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

const DriverName = "oracle"

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
		return nil, errs.New(errs.ErrKindConnectionFailed, "invalid oracle url")
	}
	u.User = url.UserPassword(cred.Username, cred.Password)

	db, err := sql.Open(DriverName, u.String())
	if err != nil {
		return nil, classifier(cred)(err, "invalid oracle config")
	}
	return db, nil
}

func classifier(cred database.Credentials) database.Classifier {
	return database.ScrubClassifier(mapError, cred.Password)
}
