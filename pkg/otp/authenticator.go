package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jeremyhahn/go-otp/pkg/secret"
	"github.com/jeremyhahn/go-otp/pkg/uri"
)

// Type selects time-based or counter-based codes.
type Type string

const (
	// TypeTOTP derives the counter from the clock.
	TypeTOTP Type = "totp"
	// TypeHOTP uses an explicit, caller-managed counter.
	TypeHOTP Type = "hotp"
)

// Config describes the secret and code parameters an Authenticator checks
// against.
type Config struct {
	// Type is TypeTOTP or TypeHOTP (required).
	Type Type
	// Secret is the encoded shared secret key (required).
	Secret string
	// Encoding is the text encoding of Secret.
	// Default: base32
	Encoding secret.Encoding
	// Issuer appears in the provisioning URI label.
	Issuer string
	// AccountName appears in the provisioning URI label.
	AccountName string
	// Digits is the code length, 6 to 10.
	// Default: 6
	Digits uint
	// Period is the TOTP step in seconds.
	// Default: 30
	Period uint
	// Counter is the HOTP counter Authenticate checks.
	// Default: 0
	Counter uint64
	// Algorithm is the HMAC hash. Unknown names are rejected.
	// Default: SHA-1
	Algorithm Algorithm
	// Skew is how many TOTP steps either side of now are accepted. Zero
	// means one.
	// Default: 1
	Skew uint
	// LookAhead is the number of counters after the expected one that
	// ValidateCounter accepts, to resynchronize HOTP tokens.
	// Default: 0
	LookAhead uint
	// Clock supplies the current time.
	// Default: SystemClock
	Clock Clock
}

func (c Config) validate() error {
	if c.Type != TypeTOTP && c.Type != TypeHOTP {
		return fmt.Errorf("%w: type must be 'totp' or 'hotp'", ErrInvalidConfig)
	}

	if strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("%w: secret must not be empty", ErrInvalidConfig)
	}

	if c.Digits != 0 && (c.Digits < MinDigits || c.Digits > MaxDigits) {
		return fmt.Errorf("%w: digits must be between %d and %d", ErrInvalidConfig, MinDigits, MaxDigits)
	}

	if _, err := ParseAlgorithm(string(c.Algorithm), PolicyStrict); err != nil {
		return err
	}

	return nil
}

// Authenticator checks user-supplied codes against a single secret. It is
// safe for concurrent use.
type Authenticator struct {
	cfg  Config
	key  []byte
	algo Algorithm
}

// NewAuthenticator validates cfg, decodes its secret and applies defaults.
// A secret that cannot be decoded is reported as ErrInvalidConfig.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	key, err := secret.Decode(cfg.Secret, cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.Digits == 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultStep
	}
	if cfg.Skew == 0 {
		cfg.Skew = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	algo, _ := ParseAlgorithm(string(cfg.Algorithm), PolicyStrict)
	cfg.Algorithm = algo

	return &Authenticator{
		cfg:  cfg,
		key:  key,
		algo: algo,
	}, nil
}

// Authenticate returns nil if code is valid now (TOTP, within Skew steps) or
// for Config.Counter (HOTP), and ErrInvalidCode otherwise. Surrounding
// whitespace is ignored.
func (a *Authenticator) Authenticate(ctx context.Context, code string) error {
	if a == nil {
		return ErrNilAuthenticator
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: code must not be empty", ErrInvalidCode)
	}
	if len(code) != int(a.cfg.Digits) {
		return fmt.Errorf("%w: expected %d digits", ErrInvalidCode, a.cfg.Digits)
	}

	if a.cfg.Type == TypeHOTP {
		return a.match(code, a.cfg.Counter)
	}

	now := a.cfg.Clock.Now().Unix()
	if now < 0 {
		return fmt.Errorf("%w: clock before the Unix epoch", ErrInvalidInput)
	}
	current := uint64(now) / uint64(a.cfg.Period)
	skew := uint64(a.cfg.Skew)

	first := uint64(0)
	if current > skew {
		first = current - skew
	}
	last := current + skew
	if last < current {
		last = math.MaxUint64
	}
	for c := first; ; c++ {
		err := a.match(code, c)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrInvalidCode) {
			return err
		}
		if c == last {
			break
		}
	}
	return ErrInvalidCode
}

// ValidateCounter checks an HOTP code against counter and up to LookAhead
// counters after it. On success it returns the counter that follows the
// matching one; callers persist it for the next attempt. The window stops at
// math.MaxUint64, and a match there fails with ErrInvalidInput because no
// next counter exists.
func (a *Authenticator) ValidateCounter(ctx context.Context, code string, counter uint64) (uint64, error) {
	if a == nil {
		return 0, ErrNilAuthenticator
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if a.cfg.Type != TypeHOTP {
		return 0, fmt.Errorf("%w: ValidateCounter is only valid for HOTP", ErrInvalidConfig)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return 0, fmt.Errorf("%w: code must not be empty", ErrInvalidCode)
	}

	last := counter + uint64(a.cfg.LookAhead)
	if last < counter {
		last = math.MaxUint64
	}
	for c := counter; ; c++ {
		err := a.match(code, c)
		if err == nil {
			if c == math.MaxUint64 {
				return 0, fmt.Errorf("%w: HOTP counter exhausted", ErrInvalidInput)
			}
			return c + 1, nil
		}
		if !errors.Is(err, ErrInvalidCode) {
			return 0, err
		}
		if c == last {
			break
		}
	}

	return 0, ErrInvalidCode
}

// Generate returns the current TOTP code, or the HOTP code for counter[0].
func (a *Authenticator) Generate(counter ...uint64) (string, error) {
	if a == nil {
		return "", ErrNilAuthenticator
	}

	if a.cfg.Type == TypeTOTP {
		tok, err := ComputeToken(a.key, int(a.cfg.Digits), int64(a.cfg.Period), a.algo,
			a.cfg.Clock.Now().Unix(), nil)
		if err != nil {
			return "", fmt.Errorf("otp: failed to generate TOTP code: %w", err)
		}
		return tok.Value, nil
	}

	if len(counter) == 0 {
		return "", fmt.Errorf("%w: counter required for HOTP generation", ErrInvalidInput)
	}

	code, err := HOTP(a.key, counter[0], int(a.cfg.Digits), a.algo)
	if err != nil {
		return "", fmt.Errorf("otp: failed to generate HOTP code: %w", err)
	}

	return code, nil
}

// GetProvisioningURI returns the otpauth:// URI for enrolling the secret in an
// authenticator app. Hex secrets are re-encoded as Base32.
func (a *Authenticator) GetProvisioningURI() string {
	if a == nil {
		return ""
	}

	encoded, _ := secret.Encode(a.key, secret.EncodingBase32)
	u := uri.URI{
		Type:      string(a.cfg.Type),
		Issuer:    a.cfg.Issuer,
		Account:   a.cfg.AccountName,
		Secret:    encoded,
		Digits:    int(a.cfg.Digits),
		Step:      int64(a.cfg.Period),
		Algorithm: a.algo.String(),
		Counter:   a.cfg.Counter,
	}
	return u.String()
}

// match compares code with the code for counter in constant time. It
// returns ErrInvalidCode on mismatch.
func (a *Authenticator) match(code string, counter uint64) error {
	want, err := HOTP(a.key, counter, int(a.cfg.Digits), a.algo)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(want)) != 1 {
		return ErrInvalidCode
	}
	return nil
}
