package otp

import (
	"crypto/hmac"
	"encoding/binary"
	"fmt"
)

const (
	// MinDigits is the shortest supported token.
	MinDigits = 6
	// MaxDigits is the longest supported token; 10^10 still fits the uint64
	// modulus and exceeds the 31-bit truncated value.
	MaxDigits = 10

	// minMACSize is the shortest MAC for which the 0x0F truncation offset
	// always leaves four readable bytes.
	minMACSize = 20
)

var pow10 = [MaxDigits + 1]uint64{
	1, 10, 100, 1000, 10000, 100000, 1000000,
	10000000, 100000000, 1000000000, 10000000000,
}

// Token is the raw output of ComputeToken.
type Token struct {
	// Value is the zero-padded decimal code.
	Value string
	// Counter is the moving factor the code was computed for.
	Counter uint64
	// SecondsRemaining is the time left in the current step. Zero when an
	// explicit counter was supplied.
	SecondsRemaining int64
	// ExpiresAt is the Unix time of the next step boundary. Zero when an
	// explicit counter was supplied.
	ExpiresAt int64
}

// ComputeToken computes the one-time password for key at Unix time now. When
// counter is non-nil it replaces the time-derived counter and the timing
// fields of the returned Token are left at zero.
func ComputeToken(key []byte, digits int, step int64, alg Algorithm, now int64, counter *uint64) (Token, error) {
	if err := checkDigits(digits); err != nil {
		return Token{}, err
	}
	if step <= 0 {
		return Token{}, fmt.Errorf("%w: step must be positive, got %d", ErrInvalidInput, step)
	}

	var c uint64
	if counter != nil {
		c = *counter
	} else {
		if now < 0 {
			return Token{}, fmt.Errorf("%w: time before the Unix epoch", ErrInvalidInput)
		}
		c = uint64(now / step)
	}

	value, err := HOTP(key, c, digits, alg)
	if err != nil {
		return Token{}, err
	}

	tok := Token{Value: value, Counter: c}
	if counter == nil {
		tok.SecondsRemaining = step - now%step
		tok.ExpiresAt = (int64(c) + 1) * step
	}
	return tok, nil
}

// HOTP computes the RFC 4226 one-time password for counter.
func HOTP(key []byte, counter uint64, digits int, alg Algorithm) (string, error) {
	if err := checkDigits(digits); err != nil {
		return "", err
	}
	if len(key) == 0 {
		return "", fmt.Errorf("%w: key must not be empty", ErrInvalidInput)
	}
	newHash := alg.hash()
	if newHash == nil {
		return "", fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidConfig, alg)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(newHash, key)
	if _, err := mac.Write(msg[:]); err != nil {
		return "", fmt.Errorf("%w: hmac: %v", ErrInternal, err)
	}

	binCode, err := truncate(mac.Sum(nil))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", digits, uint64(binCode)%pow10[digits]), nil
}

// truncate implements RFC 4226 dynamic truncation, returning a 31-bit value.
func truncate(mac []byte) (uint32, error) {
	if len(mac) < minMACSize {
		return 0, fmt.Errorf("%w: mac too short (%d bytes)", ErrInternal, len(mac))
	}
	offset := int(mac[len(mac)-1] & 0x0f)
	if offset+4 > len(mac) {
		return 0, fmt.Errorf("%w: truncation offset %d out of range", ErrInternal, offset)
	}
	return binary.BigEndian.Uint32(mac[offset:offset+4]) & 0x7fffffff, nil
}

func checkDigits(digits int) error {
	if digits < MinDigits || digits > MaxDigits {
		return fmt.Errorf("%w: digits must be between %d and %d, got %d",
			ErrInvalidInput, MinDigits, MaxDigits, digits)
	}
	return nil
}
