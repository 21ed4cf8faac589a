// Package dialect maps a logical database type onto the ordered list of
// candidate endpoint URLs a caller is willing to try, and onto the
// database/sql driver that understands those URLs.
//
// The set of types is closed: every behaviour is one case of a switch on
// Type, so adding a type means touching each switch below.
//
// Usage:
//
//	t, err := dialect.Parse("oracle")
//	urls, err := dialect.Resolve(t, dialect.Params{Server: "db1", Database: "ORCL"})
//	// urls[0] == "oracle://db1:1521/ORCL"
//	// urls[1] == "oracle://db1:1521?SID=ORCL"
package dialect

import (
	"strings"

	"github.com/koustreak/dbbroker/internal/errs"
)

// Type identifies a SQL engine family. It selects URL construction, the
// sql driver and the capacity bucket a pool is counted against.
type Type int

const (
	Oracle Type = iota + 1
	MySQL
	MSSQL
	Sybase
	Netcool
	DB2
	PostgreSQL
	Custom
)

// All returns every supported type in declaration order.
func All() []Type {
	return []Type{Oracle, MySQL, MSSQL, Sybase, Netcool, DB2, PostgreSQL, Custom}
}

// String returns the tag used in pool keys, config keys and metric labels.
func (t Type) String() string {
	switch t {
	case Oracle:
		return "oracle"
	case MySQL:
		return "mysql"
	case MSSQL:
		return "mssql"
	case Sybase:
		return "sybase"
	case Netcool:
		return "netcool"
	case DB2:
		return "db2"
	case PostgreSQL:
		return "postgresql"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	return t >= Oracle && t <= Custom
}

// Parse maps a user-facing database type name onto a Type. Matching is
// case-insensitive and accepts the common aliases.
func Parse(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "oracle":
		return Oracle, nil
	case "mysql":
		return MySQL, nil
	case "mssql", "sqlserver", "sql server":
		return MSSQL, nil
	case "sybase":
		return Sybase, nil
	case "netcool":
		return Netcool, nil
	case "db2":
		return DB2, nil
	case "postgresql", "postgres":
		return PostgreSQL, nil
	case "custom":
		return Custom, nil
	default:
		return 0, errs.Newf(errs.ErrKindUnsupportedType, "unsupported database type %q", name)
	}
}

// Params carries the structured connection parameters a caller supplies.
// It never carries credentials; they are injected when a connection is
// opened.
type Params struct {
	Server   string
	Port     int    // 0 selects the type's default port
	Database string // database, schema, service name or SID depending on the type
	Instance string // SQL Server named instance
	SSLMode  string // PostgreSQL sslmode, default "disable"

	// URLs are explicit candidates tried before any URL built from Server.
	// Blank entries are kept; the prober skips them.
	URLs []string

	// Driver names the database/sql driver for the Custom type.
	Driver string

	// Options are appended as query parameters where the URL form allows it.
	Options map[string]string
}

// DefaultPort returns the port a type's server listens on by default,
// or 0 when the type has none.
func DefaultPort(t Type) int {
	switch t {
	case Oracle:
		return 1521
	case MySQL:
		return 3306
	case MSSQL:
		return 1433
	case Sybase:
		return 5000
	case Netcool:
		return 4100
	case DB2:
		return 50000
	case PostgreSQL:
		return 5432
	default:
		return 0
	}
}

// DriverName returns the database/sql driver name a type's URLs are opened
// with. PostgreSQL is served by pgx natively and reports "pgx".
func DriverName(t Type, p Params) (string, error) {
	switch t {
	case Oracle:
		return "oracle", nil
	case MySQL:
		return "mysql", nil
	case MSSQL:
		return "sqlserver", nil
	case Sybase, Netcool:
		return "tds", nil
	case DB2:
		return "go_ibm_db", nil
	case PostgreSQL:
		return "pgx", nil
	case Custom:
		if strings.TrimSpace(p.Driver) == "" {
			return "", errs.New(errs.ErrKindInvalidInput, "custom database type requires a driver name")
		}
		return p.Driver, nil
	default:
		return "", errs.Newf(errs.ErrKindUnsupportedType, "unsupported database type %d", int(t))
	}
}

// Resolve returns the ordered candidate URLs for t. Explicit p.URLs come
// first, followed by the URL(s) built from p.Server. It fails with an
// unsupported-type error for an unknown t before doing anything else.
func Resolve(t Type, p Params) ([]string, error) {
	if !t.Valid() {
		return nil, errs.Newf(errs.ErrKindUnsupportedType, "unsupported database type %d", int(t))
	}

	urls := append([]string(nil), p.URLs...)

	if t == Custom {
		if !hasNonBlank(urls) {
			return nil, errs.New(errs.ErrKindInvalidInput, "custom database type requires at least one url")
		}
		return urls, nil
	}

	if strings.TrimSpace(p.Server) == "" {
		if hasNonBlank(urls) {
			return urls, nil
		}
		return nil, errs.Newf(errs.ErrKindInvalidInput, "server is empty for database type %s", t)
	}

	port := p.Port
	if port == 0 {
		port = DefaultPort(t)
	}

	switch t {
	case Oracle:
		urls = append(urls, oracleURLs(p, port)...)
	case MySQL:
		urls = append(urls, mysqlURL(p, port))
	case MSSQL:
		urls = append(urls, mssqlURLs(p, port)...)
	case Sybase, Netcool:
		urls = append(urls, tdsURL(p, port))
	case DB2:
		urls = append(urls, db2URL(p, port))
	case PostgreSQL:
		urls = append(urls, postgresURL(p, port))
	}
	return urls, nil
}

// SplitURLs splits a comma-separated candidate list as supplied on a
// command line or in a properties bundle. Surrounding spaces are trimmed;
// empty entries are preserved.
func SplitURLs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func hasNonBlank(urls []string) bool {
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			return true
		}
	}
	return false
}
