package otp

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeremyhahn/go-otp/pkg/secret"
)

const (
	// DefaultDigits is the token length used when Params.Digits is zero.
	DefaultDigits = 6
	// DefaultStep is the time step in seconds used when Params.Step is zero.
	DefaultStep = 30
)

// Params describes a single token computation.
type Params struct {
	// Secret is the encoded shared secret (required).
	Secret string
	// Digits is the token length, 6 to 10.
	// Default: 6
	Digits int
	// Step is the time step in seconds.
	// Default: 30
	Step int64
	// Algorithm names the HMAC hash. Unknown names follow the generator's
	// Policy.
	// Default: SHA-1
	Algorithm Algorithm
	// Encoding is the text encoding of Secret.
	// Default: base32
	Encoding secret.Encoding
	// Counter, when set, replaces the time-derived counter.
	Counter *uint64
}

// Result is the output of a token computation. The parameter fields echo the
// effective values after defaults and validation.
type Result struct {
	Token            string    `json:"token"`
	Counter          uint64    `json:"counter"`
	SecondsRemaining int64     `json:"seconds_remaining,omitempty"`
	ExpiresAt        int64     `json:"expires_at,omitempty"`
	Digits           int       `json:"digits"`
	Step             int64     `json:"step"`
	Algorithm        Algorithm `json:"algorithm"`
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the clock used by Generate.
func WithClock(c Clock) Option {
	return func(g *Generator) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithPolicy sets how unknown algorithm names are handled.
func WithPolicy(p Policy) Option {
	return func(g *Generator) {
		g.policy = p
	}
}

// Generator turns Params into Results. It holds no mutable state and is safe
// for concurrent use.
type Generator struct {
	clock  Clock
	policy Policy
}

// NewGenerator creates a Generator using the system clock and
// PolicyPermissive unless overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{clock: SystemClock{}, policy: PolicyPermissive}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = NewGenerator()

// Generate computes the current token with the default generator.
func Generate(p Params) (*Result, error) {
	return defaultGenerator.Generate(p)
}

// Policy returns the generator's algorithm policy.
func (g *Generator) Policy() Policy {
	return g.policy
}

// Generate computes the token for the current time.
func (g *Generator) Generate(p Params) (*Result, error) {
	return g.GenerateAt(p, g.clock.Now())
}

// GenerateAt computes the token for instant t.
func (g *Generator) GenerateAt(p Params, t time.Time) (*Result, error) {
	p, err := g.normalize(p)
	if err != nil {
		return nil, err
	}

	key, err := secret.Decode(p.Secret, p.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	tok, err := ComputeToken(key, p.Digits, p.Step, p.Algorithm, t.Unix(), p.Counter)
	if err != nil {
		return nil, err
	}

	return &Result{
		Token:            tok.Value,
		Counter:          tok.Counter,
		SecondsRemaining: tok.SecondsRemaining,
		ExpiresAt:        tok.ExpiresAt,
		Digits:           p.Digits,
		Step:             p.Step,
		Algorithm:        p.Algorithm,
	}, nil
}

// Validate reports the error Generate would return for p, without computing
// a token.
func (g *Generator) Validate(p Params) error {
	p, err := g.normalize(p)
	if err != nil {
		return err
	}
	if _, err := secret.Decode(p.Secret, p.Encoding); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// normalize applies defaults and validates everything except the secret
// contents.
func (g *Generator) normalize(p Params) (Params, error) {
	if strings.TrimSpace(p.Secret) == "" {
		return p, fmt.Errorf("%w: secret must not be empty", ErrInvalidInput)
	}
	if p.Digits == 0 {
		p.Digits = DefaultDigits
	}
	if err := checkDigits(p.Digits); err != nil {
		return p, err
	}
	if p.Step == 0 {
		p.Step = DefaultStep
	}
	if p.Step < 0 {
		return p, fmt.Errorf("%w: step must be positive, got %d", ErrInvalidInput, p.Step)
	}

	alg, err := ParseAlgorithm(string(p.Algorithm), g.policy)
	if err != nil {
		return p, err
	}
	p.Algorithm = alg

	if p.Encoding == "" {
		p.Encoding = secret.EncodingBase32
	}
	if p.Encoding != secret.EncodingBase32 && p.Encoding != secret.EncodingHex {
		return p, fmt.Errorf("%w: encoding must be base32 or hex, got %q", ErrInvalidInput, p.Encoding)
	}
	return p, nil
}
