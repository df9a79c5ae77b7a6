package secret

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Encoding identifies the text encoding of a secret.
type Encoding string

const (
	// EncodingBase32 is RFC 4648 Base32, the authenticator app default.
	EncodingBase32 Encoding = "base32"
	// EncodingHex is hexadecimal, two characters per byte.
	EncodingHex Encoding = "hex"
)

// DefaultSize is the number of random bytes in a generated secret (160 bits,
// the RFC 4226 recommendation).
const DefaultSize = 20

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

var (
	// ErrInvalidSecret indicates the secret is empty or cannot be decoded.
	ErrInvalidSecret = errors.New("secret: empty or invalid secret")
	// ErrUnknownEncoding indicates an encoding name other than base32 or hex.
	ErrUnknownEncoding = errors.New("secret: unknown encoding")
)

var unpadded = base32.StdEncoding.WithPadding(base32.NoPadding)

// ParseEncoding converts an encoding name into an Encoding. The empty string
// selects Base32.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(EncodingBase32):
		return EncodingBase32, nil
	case string(EncodingHex):
		return EncodingHex, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, s)
}

// Decode converts an encoded secret into raw key bytes.
func Decode(s string, enc Encoding) ([]byte, error) {
	switch enc {
	case "", EncodingBase32:
		return DecodeBase32(s)
	case EncodingHex:
		return DecodeHex(s)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
}

// DecodeBase32 decodes an RFC 4648 Base32 secret. See the package
// documentation for the cleaning rules.
func DecodeBase32(s string) ([]byte, error) {
	cleaned := cleanBase32(s)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrInvalidSecret)
	}

	out := make([]byte, 0, len(cleaned)*5/8)
	var buffer uint32
	var bits uint
	for i := 0; i < len(cleaned); i++ {
		val := strings.IndexByte(alphabet, cleaned[i])
		if val < 0 {
			return nil, fmt.Errorf("%w: invalid base32 character %q at position %d",
				ErrInvalidSecret, cleaned[i], i)
		}

		buffer = buffer<<5 | uint32(val)
		bits += 5
		if bits >= 8 {
			out = append(out, byte(buffer>>(bits-8)))
			bits -= 8
		}
		// only the pending bits are needed
		buffer &= 1<<bits - 1
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: secret decodes to zero bytes", ErrInvalidSecret)
	}
	return out, nil
}

// DecodeHex decodes a hexadecimal secret. Non-hex characters are ignored and
// an odd trailing nibble is dropped.
func DecodeHex(s string) ([]byte, error) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isHexDigit(r) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	cleaned = cleaned[:len(cleaned)&^1]
	if cleaned == "" {
		return nil, fmt.Errorf("%w: secret contains no hex byte", ErrInvalidSecret)
	}

	out, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return out, nil
}

// Encode renders key bytes in the given encoding. Base32 output is unpadded
// uppercase, hex output is lowercase.
func Encode(key []byte, enc Encoding) (string, error) {
	switch enc {
	case "", EncodingBase32:
		return unpadded.EncodeToString(key), nil
	case EncodingHex:
		return hex.EncodeToString(key), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
}

// Generate returns size random bytes encoded as unpadded Base32. A size of
// zero or less uses DefaultSize.
func Generate(size int) (string, error) {
	if size <= 0 {
		size = DefaultSize
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("secret: failed to generate random secret: %w", err)
	}
	return unpadded.EncodeToString(key), nil
}

// IsCandidate reports whether s looks like a Base32 secret of at least minLen
// characters once whitespace and padding are removed.
func IsCandidate(s string, minLen int) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	cleaned := cleanBase32(s)
	if len(cleaned) < minLen {
		return false
	}
	for i := 0; i < len(cleaned); i++ {
		if strings.IndexByte(alphabet, cleaned[i]) < 0 {
			return false
		}
	}
	return true
}

func cleanBase32(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToUpper(strings.TrimRight(s, "="))
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
