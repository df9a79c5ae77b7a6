package api

import (
	"context"
	"errors"

	"github.com/jeremyhahn/go-otp/pkg/otp"
	"github.com/jeremyhahn/go-otp/pkg/registry"
	"github.com/jeremyhahn/go-otp/pkg/secret"
	"github.com/jeremyhahn/go-otp/pkg/uri"
)

// Kind groups errors by who has to act on them.
type Kind int

const (
	// KindNone is the kind of a nil error.
	KindNone Kind = iota
	// KindInput means the caller supplied a malformed secret, parameter or
	// code. Retrying the same request fails the same way.
	KindInput
	// KindConfig means a configured setting or source is unusable.
	KindConfig
	// KindNotFound means no source knows the requested service.
	KindNotFound
	// KindCanceled means the context ended before the work finished.
	KindCanceled
	// KindInternal means the platform failed.
	KindInternal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInput:
		return "input"
	case KindConfig:
		return "config"
	case KindNotFound:
		return "not_found"
	case KindCanceled:
		return "canceled"
	}
	return "internal"
}

// Classify maps err to a Kind. Errors from outside this module are
// KindInternal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, otp.ErrInternal):
		return KindInternal
	case errors.Is(err, otp.ErrInvalidConfig),
		errors.Is(err, registry.ErrMalformed),
		errors.Is(err, registry.ErrDuplicate),
		errors.Is(err, ErrDuplicateSource):
		return KindConfig
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, otp.ErrInvalidInput),
		errors.Is(err, otp.ErrInvalidCode),
		errors.Is(err, secret.ErrInvalidSecret),
		errors.Is(err, secret.ErrUnknownEncoding),
		errors.Is(err, uri.ErrNotProvisioningURI),
		errors.Is(err, uri.ErrInvalidParameter),
		errors.Is(err, uri.ErrMissingSecret),
		errors.Is(err, registry.ErrInvalidName):
		return KindInput
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, ErrNoSources):
		return KindNotFound
	}
	return KindInternal
}
