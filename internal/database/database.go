package database

import (
	"context"
	"fmt"
)

// Conn is a single live connection handed to a caller. Closing it returns
// it to its source when pooled, or terminates it when direct.
type Conn interface {
	// Ping verifies the connection is still usable.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Source owns zero or more live connections to one endpoint under one
// identity. It is created and exclusively owned by a pool registry entry.
type Source interface {
	// Acquire checks out a connection, dialing a new one when none is idle.
	Acquire(ctx context.Context) (Conn, error)

	// Stats reports the source's current connection counts.
	Stats() Stats

	// Close terminates every connection, idle or checked out.
	Close() error
}

// Stats is a point-in-time view of a source.
type Stats struct {
	Open  int // connections currently established, idle or in use
	InUse int // connections checked out by callers
	Idle  int
}

// Credentials identify the user a connection is opened as. They are never
// embedded in candidate URLs; driver packages inject them at open time.
type Credentials struct {
	Username string
	Password string
}

// String omits the password so credentials can safely reach a log line.
func (c Credentials) String() string {
	return fmt.Sprintf("%s:***", c.Username)
}

// GoString keeps %#v from printing the password.
func (c Credentials) GoString() string {
	return fmt.Sprintf("database.Credentials{Username:%q}", c.Username)
}
