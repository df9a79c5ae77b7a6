package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/jeremyhahn/go-otp/pkg/secret"
)

var (
	// ErrNotFound indicates no secret is configured for the requested service.
	ErrNotFound = errors.New("registry: service not found")
	// ErrInvalidName indicates the service name has no usable characters.
	ErrInvalidName = errors.New("registry: invalid service name")
	// ErrMalformed indicates a configured entry or group cannot be used.
	ErrMalformed = errors.New("registry: malformed entry")
	// ErrDuplicate indicates two entries claim the same name or alias.
	ErrDuplicate = errors.New("registry: duplicate service")
)

// Entry is a configured service secret. Zero-valued overrides leave the
// caller's parameters in effect.
type Entry struct {
	// Service is the name the entry is reported under.
	Service string `yaml:"service" validate:"required"`
	// Aliases are extra names, such as access tokens, that resolve to the
	// entry.
	Aliases []string `yaml:"aliases,omitempty" validate:"omitempty,dive,required"`
	// Secret is the encoded shared secret.
	Secret string `yaml:"secret" validate:"required"`
	// Digits overrides the token length.
	Digits int `yaml:"digits,omitempty" validate:"omitempty,min=6,max=10"`
	// Step overrides the time step in seconds.
	Step int64 `yaml:"step,omitempty" validate:"omitempty,gt=0"`
	// Algorithm overrides the HMAC hash name.
	Algorithm string `yaml:"algorithm,omitempty"`
	// Encoding overrides the secret encoding.
	Encoding secret.Encoding `yaml:"encoding,omitempty" validate:"omitempty,oneof=base32 hex"`
}

// Registry resolves a service name to its secret.
type Registry interface {
	Lookup(ctx context.Context, service string) (Entry, error)
}

// Lister enumerates every configured service.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

// LookupFunc adapts a function to the Registry interface.
type LookupFunc func(ctx context.Context, service string) (Entry, error)

// Lookup executes the underlying function.
func (f LookupFunc) Lookup(ctx context.Context, service string) (Entry, error) {
	return f(ctx, service)
}

// CanonicalName lowercases name and collapses every run of characters other
// than a-z and 0-9 into a single '-', trimming leading and trailing dashes.
// "My_Service!" becomes "my-service".
func CanonicalName(name string) string {
	return collapse(strings.ToLower(name), '-')
}

// EnvKey maps a service name to its environment variable: runs of characters
// other than letters and digits become a single '_', the result is trimmed
// and uppercased. "github-work" becomes "GITHUB_WORK".
func EnvKey(name string) string {
	return strings.ToUpper(collapse(name, '_'))
}

func collapse(s string, sep byte) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) {
			if pending && b.Len() > 0 {
				b.WriteByte(sep)
			}
			pending = false
			b.WriteByte(c)
			continue
		}
		pending = true
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
