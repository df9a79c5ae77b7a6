package otp

import "errors"

// Errors fall into three groups. Input errors are caller mistakes and never
// change on retry. Configuration errors come from a rejected setting such as
// an unknown algorithm under PolicyStrict. Internal errors mean the platform
// failed, not the caller.
var (
	// ErrInvalidInput indicates a malformed secret, digit count or time step.
	ErrInvalidInput = errors.New("otp: invalid input")
	// ErrInvalidConfig indicates the configuration is invalid.
	ErrInvalidConfig = errors.New("otp: invalid configuration")
	// ErrInternal indicates the cryptographic primitive failed.
	ErrInternal = errors.New("otp: internal error")

	// ErrInvalidCode indicates the provided OTP code is invalid.
	ErrInvalidCode = errors.New("otp: invalid code")
	// ErrNilAuthenticator indicates a nil authenticator was used.
	ErrNilAuthenticator = errors.New("otp: authenticator is nil")
)
