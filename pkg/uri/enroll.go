package uri

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the QR code edge length in pixels used when PNG is given a
// non-positive size.
const DefaultQRSize = 256

// GenerateOpts configures enrollment of a new TOTP key.
type GenerateOpts struct {
	// Issuer is the issuing organization (required).
	Issuer string
	// AccountName is the account identifier (required).
	AccountName string
	// Digits is the token length.
	// Default: 6
	Digits int
	// Step is the period in seconds.
	// Default: 30
	Step int64
	// Algorithm is SHA-1, SHA-256 or SHA-512.
	// Default: SHA-1
	Algorithm string
	// SecretSize is the random secret length in bytes.
	// Default: 20
	SecretSize uint
}

// Generate enrolls a new TOTP key with a random secret and returns its
// provisioning URI.
func Generate(opts GenerateOpts) (*URI, error) {
	if opts.Step < 0 {
		return nil, fmt.Errorf("%w: period must be positive", ErrInvalidParameter)
	}
	if opts.Digits < 0 {
		return nil, fmt.Errorf("%w: digits must be positive", ErrInvalidParameter)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      opts.Issuer,
		AccountName: opts.AccountName,
		Period:      uint(opts.Step),
		SecretSize:  opts.SecretSize,
		Digits:      otp.Digits(opts.Digits),
		Algorithm:   toOTPAlgorithm(opts.Algorithm),
	})
	if err != nil {
		return nil, fmt.Errorf("uri: failed to generate key: %w", err)
	}

	return Parse(key.URL())
}

// Key converts the URI into a pquerna/otp key.
func (u *URI) Key() (*otp.Key, error) {
	if !u.HasSecret() {
		return nil, ErrMissingSecret
	}
	return otp.NewKeyFromURL(u.String())
}

// PNG renders the URI as a square QR code of size pixels.
func (u *URI) PNG(size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	key, err := u.Key()
	if err != nil {
		return nil, err
	}
	img, err := key.Image(size, size)
	if err != nil {
		return nil, fmt.Errorf("uri: failed to render qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("uri: failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Terminal renders the URI as a QR code made of half-block characters,
// suitable for printing to a terminal.
func (u *URI) Terminal() (string, error) {
	if !u.HasSecret() {
		return "", ErrMissingSecret
	}
	q, err := qrcode.New(u.String(), qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("uri: failed to render qr code: %w", err)
	}
	return q.ToSmallString(false), nil
}

func toOTPAlgorithm(s string) otp.Algorithm {
	switch NormalizeAlgorithm(s) {
	case "SHA-256":
		return otp.AlgorithmSHA256
	case "SHA-512":
		return otp.AlgorithmSHA512
	}
	return otp.AlgorithmSHA1
}

// IsMissingField reports whether err came from enrollment without an issuer
// or account name.
func IsMissingField(err error) bool {
	return errors.Is(err, otp.ErrGenerateMissingIssuer) ||
		errors.Is(err, otp.ErrGenerateMissingAccountName)
}
