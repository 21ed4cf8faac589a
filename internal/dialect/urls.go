package dialect

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// hostPort joins host and port, bracketing IPv6 literals.
func hostPort(host string, port int) string {
	return net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(port))
}

// withOptions sets p.Options on q in a stable order.
func withOptions(q url.Values, opts map[string]string) url.Values {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, opts[k])
	}
	return q
}

// oracleURLs returns the service-name form first, then the SID form.
func oracleURLs(p Params, port int) []string {
	service := url.URL{
		Scheme:   "oracle",
		Host:     hostPort(p.Server, port),
		Path:     "/" + p.Database,
		RawQuery: withOptions(url.Values{}, p.Options).Encode(),
	}

	sidQuery := withOptions(url.Values{}, p.Options)
	sidQuery.Set("SID", p.Database)
	sid := url.URL{
		Scheme:   "oracle",
		Host:     hostPort(p.Server, port),
		RawQuery: sidQuery.Encode(),
	}
	return []string{service.String(), sid.String()}
}

// mysqlURL produces a go-sql-driver DSN without the user:password@ prefix.
func mysqlURL(p Params, port int) string {
	q := url.Values{}
	q.Set("parseTime", "true")
	q = withOptions(q, p.Options)
	return fmt.Sprintf("tcp(%s)/%s?%s", hostPort(p.Server, port), p.Database, q.Encode())
}

// mssqlURLs tries the named instance (resolved through SQL Browser) before
// the plain host:port form.
func mssqlURLs(p Params, port int) []string {
	q := url.Values{}
	if p.Database != "" {
		q.Set("database", p.Database)
	}
	q = withOptions(q, p.Options)

	var out []string
	if p.Instance != "" {
		inst := url.URL{
			Scheme:   "sqlserver",
			Host:     strings.Trim(p.Server, "[]"),
			Path:     "/" + p.Instance,
			RawQuery: q.Encode(),
		}
		if strings.Contains(inst.Host, ":") {
			inst.Host = "[" + inst.Host + "]"
		}
		out = append(out, inst.String())
	}
	plain := url.URL{
		Scheme:   "sqlserver",
		Host:     hostPort(p.Server, port),
		RawQuery: q.Encode(),
	}
	return append(out, plain.String())
}

// tdsURL serves both Sybase ASE and the Netcool ObjectServer.
func tdsURL(p Params, port int) string {
	q := url.Values{}
	q.Set("charset", "utf8")
	q = withOptions(q, p.Options)
	u := url.URL{
		Scheme:   "tds",
		Host:     hostPort(p.Server, port),
		Path:     "/" + p.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// db2URL produces a CLI keyword DSN. Credentials are appended as UID/PWD
// when the connection is opened.
func db2URL(p Params, port int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "HOSTNAME=%s;PORT=%d;DATABASE=%s;PROTOCOL=TCPIP", strings.Trim(p.Server, "[]"), port, p.Database)
	keys := make([]string, 0, len(p.Options))
	for k := range p.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, ";%s=%s", k, p.Options[k])
	}
	return sb.String()
}

func postgresURL(p Params, port int) string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q = withOptions(q, p.Options)
	u := url.URL{
		Scheme:   "postgres",
		Host:     hostPort(p.Server, port),
		Path:     "/" + p.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}
