package pool

import (
	"github.com/koustreak/dbbroker/internal/dialect"
)

// PoolKey identifies one endpoint of one database type. All sources for
// the endpoint, whatever their user, live under the same PoolKey.
type PoolKey struct {
	Type dialect.Type
	URL  string
}

func (k PoolKey) String() string {
	return k.Type.String() + "." + dialect.Redact(k.URL)
}

// SourceKey identifies one source within an endpoint: one user with one
// password. The password is held only as a digest, which String never
// prints.
type SourceKey struct {
	URL      string
	Username string
	digest   string
}

func (k SourceKey) String() string {
	return dialect.Redact(k.URL) + "." + k.Username
}
