// Package generic opens sources for any database/sql driver registered in
// the binary: DB2 through go_ibm_db when the host links it, and the Custom
// type whose driver name comes with the request.
//
// lib/pq ("postgres"), pgx's stdlib adapter ("pgx") and modernc sqlite
// ("sqlite") are always registered so Custom requests can reach them.
package generic

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" driver
	_ "github.com/lib/pq"              // register "postgres" driver
	_ "modernc.org/sqlite"             // register "sqlite" driver

	"github.com/koustreak/dbbroker/internal/database"
	"github.com/koustreak/dbbroker/internal/errs"
)

// DB2DriverName is the name github.com/ibmdb/go_ibm_db registers. The
// driver needs cgo and the IBM CLI client, so binaries opt in by linking it.
const DB2DriverName = "go_ibm_db"

// Registered reports whether driverName is available in this binary.
func Registered(driverName string) bool {
	return slices.Contains(sql.Drivers(), driverName)
}

// Open returns a pooled source for dsn on driverName as cred.
func Open(_ context.Context, driverName, dsn string, cred database.Credentials, cfg database.SourceConfig) (database.Source, error) {
	db, err := openDB(driverName, dsn, cred)
	if err != nil {
		return nil, err
	}
	return database.NewSQLSource(db, cfg, classifier(cred)), nil
}

// Connect dials a single unpooled connection.
func Connect(ctx context.Context, driverName, dsn string, cred database.Credentials, timeout time.Duration) (database.Conn, error) {
	db, err := openDB(driverName, dsn, cred)
	if err != nil {
		return nil, err
	}
	return database.OpenDirect(ctx, db, timeout, classifier(cred))
}

func openDB(driverName, dsn string, cred database.Credentials) (*sql.DB, error) {
	if !Registered(driverName) {
		return nil, errs.Newf(errs.ErrKindDriverUnavailable, "sql driver %q is not registered", driverName)
	}

	full, err := InjectCredentials(driverName, dsn, cred)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName, full)
	if err != nil {
		return nil, classifier(cred)(err, fmt.Sprintf("invalid %s dsn", driverName))
	}
	return db, nil
}

// InjectCredentials places cred into dsn in the form driverName expects:
//   - DB2 gets brace-quoted UID/PWD keywords
//   - {username}/{password} placeholders are replaced
//   - go-sql-driver DSNs get User/Passwd through mysql.ParseDSN
//   - URL-shaped DSNs get userinfo
//   - lib/pq and pgx key/value DSNs get quoted user and password keywords
//
// sqlite file DSNs carry no identity and are returned unchanged. Any other
// shape is rejected so a source is never opened as the driver's default
// user.
func InjectCredentials(driverName, dsn string, cred database.Credentials) (string, error) {
	if driverName == DB2DriverName {
		if strings.ContainsRune(cred.Username, '}') || strings.ContainsRune(cred.Password, '}') {
			return "", errs.New(errs.ErrKindInvalidInput, "db2 credentials cannot contain '}'")
		}
		return fmt.Sprintf("%s;UID={%s};PWD={%s}", strings.TrimSuffix(dsn, ";"), cred.Username, cred.Password), nil
	}

	if strings.Contains(dsn, "{username}") || strings.Contains(dsn, "{password}") {
		return strings.NewReplacer("{username}", cred.Username, "{password}", cred.Password).Replace(dsn), nil
	}

	if driverName == "mysql" {
		c, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", errs.Wrap(errs.ErrKindConnectionFailed, "invalid mysql dsn", err)
		}
		c.User = cred.Username
		c.Passwd = cred.Password
		return c.FormatDSN(), nil
	}

	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.Host != "" {
		u.User = url.UserPassword(cred.Username, cred.Password)
		return u.String(), nil
	}

	switch driverName {
	case "postgres", "pgx":
		return fmt.Sprintf("%s user=%s password=%s", strings.TrimSpace(dsn), quoteKV(cred.Username), quoteKV(cred.Password)), nil
	case "sqlite", "sqlite3":
		return dsn, nil
	}
	return "", errs.Newf(errs.ErrKindInvalidInput, "cannot place credentials in %s dsn", driverName)
}

// quoteKV quotes a libpq keyword value.
func quoteKV(v string) string {
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

func classifier(cred database.Credentials) database.Classifier {
	return database.ScrubClassifier(mapError, cred.Password)
}
