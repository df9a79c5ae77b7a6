package otp

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"
)

// Algorithm represents the HMAC hash used for OTP generation. Values use the
// hyphenated form (SHA-1) returned in results; provisioning URIs carry the
// compact form (SHA1).
type Algorithm string

const (
	// AlgorithmSHA1 uses SHA-1, the default understood by every authenticator.
	AlgorithmSHA1 Algorithm = "SHA-1"
	// AlgorithmSHA256 uses SHA-256.
	AlgorithmSHA256 Algorithm = "SHA-256"
	// AlgorithmSHA512 uses SHA-512.
	AlgorithmSHA512 Algorithm = "SHA-512"
)

// Policy decides what happens to an algorithm name that is not recognized.
type Policy int

const (
	// PolicyPermissive maps unknown algorithm names to SHA-1, which is what
	// authenticator apps do with provisioning URIs.
	PolicyPermissive Policy = iota
	// PolicyStrict rejects unknown algorithm names with ErrInvalidConfig.
	PolicyStrict
)

// String returns the policy name.
func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "permissive"
}

// ParseAlgorithm normalizes an algorithm name. Case, hyphens and underscores
// are ignored so "sha256", "SHA-256" and "SHA_256" are equivalent. The empty
// string selects SHA-1.
func ParseAlgorithm(s string, policy Policy) (Algorithm, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.NewReplacer("-", "", "_", "").Replace(name)
	switch name {
	case "", "SHA1":
		return AlgorithmSHA1, nil
	case "SHA256":
		return AlgorithmSHA256, nil
	case "SHA512":
		return AlgorithmSHA512, nil
	}
	if policy == PolicyStrict {
		return "", fmt.Errorf("%w: algorithm must be SHA-1, SHA-256, or SHA-512, got %q",
			ErrInvalidConfig, s)
	}
	return AlgorithmSHA1, nil
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	return a.hash() != nil
}

// String returns the hyphenated algorithm name.
func (a Algorithm) String() string {
	return string(a)
}

// URIName returns the name used in the algorithm parameter of otpauth URIs.
func (a Algorithm) URIName() string {
	return strings.ReplaceAll(string(a), "-", "")
}

// Size returns the MAC length in bytes, or 0 for an unsupported algorithm.
func (a Algorithm) Size() int {
	switch a {
	case AlgorithmSHA1:
		return sha1.Size
	case AlgorithmSHA256:
		return sha256.Size
	case AlgorithmSHA512:
		return sha512.Size
	}
	return 0
}

func (a Algorithm) hash() func() hash.Hash {
	switch a {
	case AlgorithmSHA1:
		return sha1.New
	case AlgorithmSHA256:
		return sha256.New
	case AlgorithmSHA512:
		return sha512.New
	}
	return nil
}
