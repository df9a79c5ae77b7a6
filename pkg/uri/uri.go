package uri

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// Scheme is the provisioning URI scheme.
	Scheme = "otpauth"
	// TypeTOTP is the host segment of time-based URIs.
	TypeTOTP = "totp"
	// TypeHOTP is the host segment of counter-based URIs.
	TypeHOTP = "hotp"

	defaultDigits    = 6
	defaultPeriod    = 30
	defaultAlgorithm = "SHA-1"
)

var (
	// ErrNotProvisioningURI indicates the input is not an otpauth://totp URI.
	ErrNotProvisioningURI = errors.New("uri: not a provisioning uri")
	// ErrInvalidParameter indicates a provisioning URI with a malformed
	// numeric parameter.
	ErrInvalidParameter = errors.New("uri: invalid parameter")
	// ErrMissingSecret indicates an operation needs a secret the URI lacks.
	ErrMissingSecret = errors.New("uri: missing secret")
)

// URI is a parsed provisioning URI.
type URI struct {
	// Type is "totp" or "hotp". Parse only produces "totp".
	Type string
	// Label is the decoded path, e.g. "ACME:alice@example.com".
	Label string
	// Name is the display name derived from issuer and account.
	Name string
	// Issuer is the issuing organization, from the label or the issuer
	// parameter.
	Issuer string
	// Account is the account part of the label.
	Account string
	// Secret is the Base32 secret, possibly empty.
	Secret string
	// Digits is the token length.
	Digits int
	// Step is the period in seconds.
	Step int64
	// Algorithm is SHA-1, SHA-256 or SHA-512.
	Algorithm string
	// Counter is the initial counter of hotp URIs.
	Counter uint64
}

// IsProvisioningURI reports whether s starts with the otpauth scheme.
func IsProvisioningURI(s string) bool {
	s = strings.TrimSpace(s)
	prefix := Scheme + "://"
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// Parse parses an otpauth://totp URI.
func Parse(text string) (*URI, error) {
	s := strings.TrimSpace(text)
	if !IsProvisioningURI(s) {
		return nil, ErrNotProvisioningURI
	}

	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotProvisioningURI, err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) || !strings.EqualFold(u.Host, TypeTOTP) {
		return nil, ErrNotProvisioningURI
	}

	q := u.Query()
	out := &URI{
		Type:      TypeTOTP,
		Label:     strings.TrimPrefix(u.Path, "/"),
		Issuer:    q.Get("issuer"),
		Secret:    q.Get("secret"),
		Algorithm: NormalizeAlgorithm(q.Get("algorithm")),
	}

	if issuer, account, ok := strings.Cut(out.Label, ":"); ok {
		// Only the text between the first and second colon names the account.
		account, _, _ = strings.Cut(account, ":")
		out.Issuer = strings.TrimSpace(issuer)
		out.Account = strings.TrimSpace(account)
		out.Name = fmt.Sprintf("%s (%s)", out.Issuer, out.Account)
	} else {
		out.Account = out.Label
		out.Name = out.Label
		if out.Issuer != "" {
			out.Name = fmt.Sprintf("%s (%s)", out.Issuer, out.Label)
		}
	}

	digits, err := intParam(q, "digits", defaultDigits)
	if err != nil {
		return nil, err
	}
	out.Digits = int(digits)

	if out.Step, err = intParam(q, "period", defaultPeriod); err != nil {
		return nil, err
	}

	return out, nil
}

// NormalizeAlgorithm maps an otpauth algorithm parameter to its hyphenated
// name. Unrecognized and empty values become SHA-1. Hyphenated names such as
// SHA-256 are accepted.
func NormalizeAlgorithm(s string) string {
	switch strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "") {
	case "SHA256":
		return "SHA-256"
	case "SHA512":
		return "SHA-512"
	}
	return defaultAlgorithm
}

// HasSecret reports whether the URI carries a secret.
func (u *URI) HasSecret() bool {
	return u != nil && strings.TrimSpace(u.Secret) != ""
}

// String renders the URI in the form authenticator apps expect. Zero Digits,
// Step and Algorithm are written as their defaults.
func (u *URI) String() string {
	if u == nil {
		return ""
	}

	typ := strings.ToLower(u.Type)
	if typ == "" {
		typ = TypeTOTP
	}

	v := url.Values{}
	v.Set("secret", u.Secret)
	if u.Issuer != "" {
		v.Set("issuer", u.Issuer)
	}
	algorithm := u.Algorithm
	if algorithm == "" {
		algorithm = defaultAlgorithm
	}
	v.Set("algorithm", strings.ReplaceAll(NormalizeAlgorithm(algorithm), "-", ""))
	digits := u.Digits
	if digits == 0 {
		digits = defaultDigits
	}
	v.Set("digits", strconv.Itoa(digits))

	if typ == TypeHOTP {
		v.Set("counter", strconv.FormatUint(u.Counter, 10))
	} else {
		step := u.Step
		if step == 0 {
			step = defaultPeriod
		}
		v.Set("period", strconv.FormatInt(step, 10))
	}

	// spaces as %20; some authenticators show '+' literally
	query := strings.ReplaceAll(v.Encode(), "+", "%20")
	return fmt.Sprintf("%s://%s/%s?%s", Scheme, typ, url.PathEscape(u.label()), query)
}

func (u *URI) label() string {
	account := u.Account
	if account == "" && u.Issuer == "" {
		return u.Label
	}
	if u.Issuer == "" {
		return account
	}
	return u.Issuer + ":" + account
}

func intParam(q url.Values, key string, def int64) (int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidParameter, key, raw)
	}
	return n, nil
}
