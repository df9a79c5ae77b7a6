package cli

import (
	"errors"

	"github.com/jeremyhahn/go-otp/internal/config"
	"github.com/jeremyhahn/go-otp/pkg/api"
)

// Exit codes returned by otpctl.
const (
	ExitOK       = 0
	ExitInternal = 1
	ExitInput    = 2
	ExitConfig   = 3
	ExitNotFound = 4
	ExitCanceled = 5
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if errors.Is(err, config.ErrInvalid) {
		return ExitConfig
	}
	switch api.Classify(err) {
	case api.KindNone:
		return ExitOK
	case api.KindInput:
		return ExitInput
	case api.KindConfig:
		return ExitConfig
	case api.KindNotFound:
		return ExitNotFound
	case api.KindCanceled:
		return ExitCanceled
	}
	return ExitInternal
}
