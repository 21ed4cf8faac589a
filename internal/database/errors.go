package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/koustreak/dbbroker/internal/errs"
)

// Classifier maps a driver's native error onto the broker taxonomy. Each
// driver package supplies one; msg describes the failed operation.
type Classifier func(err error, msg string) *errs.Error

// MapError classifies the failures every driver shares: context deadlines,
// network errors and a refused driver connection. Anything else becomes
// a connection failure. Driver packages call it after checking their own
// error types.
func MapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	if errors.Is(err, driver.ErrBadConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	if looksLikeAuthFailure(err.Error()) {
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// looksLikeAuthFailure catches drivers that only report login failures as
// text.
func looksLikeAuthFailure(text string) bool {
	text = strings.ToLower(text)
	for _, marker := range []string{
		"login failed",
		"login error",
		"authentication failed",
		"access denied",
		"invalid username/password",
		"password authentication",
	} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// ScrubClassifier wraps c so that secret never survives into the text of a
// classified error's cause. The kind is kept.
func ScrubClassifier(c Classifier, secret string) Classifier {
	return func(err error, msg string) *errs.Error {
		e := c(err, msg)
		if e == nil || secret == "" || e.Cause == nil {
			return e
		}
		text := e.Cause.Error()
		if !strings.Contains(text, secret) {
			return e
		}
		return errs.Wrap(e.Kind, e.Message, errors.New(strings.ReplaceAll(text, secret, "***")))
	}
}
