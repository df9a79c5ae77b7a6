package otp

import (
	"errors"
	"strconv"
	"testing"
)

var (
	// RFC 6238 Appendix B seeds: the ASCII digits 1234567890 repeated to the
	// hash output size.
	seedSHA1   = []byte("12345678901234567890")
	seedSHA256 = []byte("12345678901234567890123456789012")
	seedSHA512 = []byte("1234567890123456789012345678901234567890123456789012345678901234")
)

// TestComputeTokenRFC6238 tests the RFC 6238 Appendix B vectors
func TestComputeTokenRFC6238(t *testing.T) {
	tests := []struct {
		time int64
		alg  Algorithm
		want string
	}{
		{59, AlgorithmSHA1, "94287082"},
		{59, AlgorithmSHA256, "46119246"},
		{59, AlgorithmSHA512, "90693936"},
		{1111111109, AlgorithmSHA1, "07081804"},
		{1111111109, AlgorithmSHA256, "68084774"},
		{1111111109, AlgorithmSHA512, "25091201"},
		{1111111111, AlgorithmSHA1, "14050471"},
		{1111111111, AlgorithmSHA256, "67062674"},
		{1111111111, AlgorithmSHA512, "99943326"},
		{1234567890, AlgorithmSHA1, "89005924"},
		{1234567890, AlgorithmSHA256, "91819424"},
		{1234567890, AlgorithmSHA512, "93441116"},
		{2000000000, AlgorithmSHA1, "69279037"},
		{2000000000, AlgorithmSHA256, "90698825"},
		{2000000000, AlgorithmSHA512, "38618901"},
		{20000000000, AlgorithmSHA1, "65353130"},
		{20000000000, AlgorithmSHA256, "77737706"},
		{20000000000, AlgorithmSHA512, "47863826"},
	}

	seeds := map[Algorithm][]byte{
		AlgorithmSHA1:   seedSHA1,
		AlgorithmSHA256: seedSHA256,
		AlgorithmSHA512: seedSHA512,
	}

	for _, tt := range tests {
		t.Run(string(tt.alg)+"/"+strconv.FormatInt(tt.time, 10), func(t *testing.T) {
			tok, err := ComputeToken(seeds[tt.alg], 8, 30, tt.alg, tt.time, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tok.Value != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tok.Value)
			}
		})
	}
}

// TestHOTPRFC4226 tests the RFC 4226 Appendix D vectors
func TestHOTPRFC4226(t *testing.T) {
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}
	for counter, code := range want {
		got, err := HOTP(seedSHA1, uint64(counter), 6, AlgorithmSHA1)
		if err != nil {
			t.Fatalf("counter %d: unexpected error: %v", counter, err)
		}
		if got != code {
			t.Errorf("counter %d: expected %s, got %s", counter, code, got)
		}
	}
}

// TestComputeTokenTiming tests the timing metadata
func TestComputeTokenTiming(t *testing.T) {
	tests := []struct {
		name          string
		now           int64
		step          int64
		wantCounter   uint64
		wantRemaining int64
		wantExpires   int64
	}{
		{name: "mid window", now: 59, step: 30, wantCounter: 1, wantRemaining: 1, wantExpires: 60},
		{name: "on boundary", now: 60, step: 30, wantCounter: 2, wantRemaining: 30, wantExpires: 90},
		{name: "epoch", now: 0, step: 30, wantCounter: 0, wantRemaining: 30, wantExpires: 30},
		{name: "custom step", now: 1000, step: 60, wantCounter: 16, wantRemaining: 20, wantExpires: 1020},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := ComputeToken(seedSHA1, 6, tt.step, AlgorithmSHA1, tt.now, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tok.Counter != tt.wantCounter {
				t.Errorf("expected counter %d, got %d", tt.wantCounter, tok.Counter)
			}
			if tok.SecondsRemaining != tt.wantRemaining {
				t.Errorf("expected %d seconds remaining, got %d", tt.wantRemaining, tok.SecondsRemaining)
			}
			if tok.ExpiresAt != tt.wantExpires {
				t.Errorf("expected expiry %d, got %d", tt.wantExpires, tok.ExpiresAt)
			}
			if tok.ExpiresAt%tt.step != 0 {
				t.Errorf("expiry %d is not a multiple of step %d", tok.ExpiresAt, tt.step)
			}
		})
	}
}

// TestComputeTokenExplicitCounter tests that explicit counters match the clock
func TestComputeTokenExplicitCounter(t *testing.T) {
	const step = 30
	for _, now := range []int64{59, 1111111109, 1234567890} {
		timed, err := ComputeToken(seedSHA1, 6, step, AlgorithmSHA1, now, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		next, err := ComputeToken(seedSHA1, 6, step, AlgorithmSHA1, now+step, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		c := uint64(now / step)
		c1 := c + 1
		fixed, err := ComputeToken(seedSHA1, 6, step, AlgorithmSHA1, 0, &c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fixedNext, err := ComputeToken(seedSHA1, 6, step, AlgorithmSHA1, 0, &c1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if timed.Value != fixed.Value {
			t.Errorf("t=%d: clock token %s differs from counter token %s", now, timed.Value, fixed.Value)
		}
		if next.Value != fixedNext.Value {
			t.Errorf("t=%d: next clock token %s differs from counter token %s", now, next.Value, fixedNext.Value)
		}
		if fixed.SecondsRemaining != 0 || fixed.ExpiresAt != 0 {
			t.Errorf("expected zero timing fields for explicit counter, got %d/%d",
				fixed.SecondsRemaining, fixed.ExpiresAt)
		}
		if fixed.Counter != c {
			t.Errorf("expected counter %d, got %d", c, fixed.Counter)
		}
	}
}

// TestComputeTokenDigits tests the padding invariant across token lengths
func TestComputeTokenDigits(t *testing.T) {
	for digits := MinDigits; digits <= MaxDigits; digits++ {
		for counter := uint64(0); counter < 200; counter++ {
			c := counter
			tok, err := ComputeToken(seedSHA1, digits, 30, AlgorithmSHA1, 0, &c)
			if err != nil {
				t.Fatalf("digits %d: unexpected error: %v", digits, err)
			}
			if len(tok.Value) != digits {
				t.Fatalf("digits %d: token %q has length %d", digits, tok.Value, len(tok.Value))
			}
			n, err := strconv.ParseUint(tok.Value, 10, 64)
			if err != nil {
				t.Fatalf("digits %d: token %q is not numeric", digits, tok.Value)
			}
			if n >= pow10[digits] {
				t.Fatalf("digits %d: token %d out of range", digits, n)
			}
		}
	}
}

// TestComputeTokenDeterminism tests repeated calls return identical tokens
func TestComputeTokenDeterminism(t *testing.T) {
	first, err := ComputeToken(seedSHA256, 7, 45, AlgorithmSHA256, 1700000000, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ComputeToken(seedSHA256, 7, 45, AlgorithmSHA256, 1700000000, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("expected %+v, got %+v", first, again)
		}
	}
}

// TestComputeTokenErrors tests input validation
func TestComputeTokenErrors(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		digits  int
		step    int64
		alg     Algorithm
		now     int64
		wantErr error
	}{
		{name: "zero digits", key: seedSHA1, digits: 0, step: 30, alg: AlgorithmSHA1, wantErr: ErrInvalidInput},
		{name: "five digits", key: seedSHA1, digits: 5, step: 30, alg: AlgorithmSHA1, wantErr: ErrInvalidInput},
		{name: "eleven digits", key: seedSHA1, digits: 11, step: 30, alg: AlgorithmSHA1, wantErr: ErrInvalidInput},
		{name: "zero step", key: seedSHA1, digits: 6, step: 0, alg: AlgorithmSHA1, wantErr: ErrInvalidInput},
		{name: "negative step", key: seedSHA1, digits: 6, step: -30, alg: AlgorithmSHA1, wantErr: ErrInvalidInput},
		{name: "empty key", key: nil, digits: 6, step: 30, alg: AlgorithmSHA1, wantErr: ErrInvalidInput},
		{name: "pre epoch", key: seedSHA1, digits: 6, step: 30, alg: AlgorithmSHA1, now: -1, wantErr: ErrInvalidInput},
		{name: "unsupported algorithm", key: seedSHA1, digits: 6, step: 30, alg: "MD5", wantErr: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeToken(tt.key, tt.digits, tt.step, tt.alg, tt.now, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestTruncate tests the dynamic truncation bounds checks
func TestTruncate(t *testing.T) {
	// RFC 4226 section 5.4 example
	mac := []byte{
		0x1f, 0x86, 0x98, 0x69, 0x0e, 0x02, 0xca, 0x16, 0x61, 0x85,
		0x50, 0xef, 0x7f, 0x19, 0xda, 0x8e, 0x94, 0x5b, 0x55, 0x5a,
	}
	got, err := truncate(mac)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0x50ef7f19 {
		t.Errorf("expected 0x50ef7f19, got %#x", got)
	}

	// offset 15 reads bytes 15 to 18 and masks the sign bit
	maxOffset := make([]byte, 20)
	maxOffset[15] = 0xff
	maxOffset[18] = 0x01
	maxOffset[19] = 0x0f
	if got, err := truncate(maxOffset); err != nil || got != 0x7f000001 {
		t.Errorf("expected 0x7f000001, got %#x (%v)", got, err)
	}

	if _, err := truncate(make([]byte, 16)); !errors.Is(err, ErrInternal) {
		t.Errorf("expected ErrInternal for short mac, got %v", err)
	}
}

// TestParseAlgorithm tests algorithm normalization and policies
func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in         string
		want       Algorithm
		strictFail bool
	}{
		{in: "", want: AlgorithmSHA1},
		{in: "SHA1", want: AlgorithmSHA1},
		{in: "sha-1", want: AlgorithmSHA1},
		{in: "SHA256", want: AlgorithmSHA256},
		{in: "SHA-256", want: AlgorithmSHA256},
		{in: "sha_512", want: AlgorithmSHA512},
		{in: "MD5", want: AlgorithmSHA1, strictFail: true},
		{in: "SHA3-256", want: AlgorithmSHA1, strictFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in, PolicyPermissive)
			if err != nil {
				t.Fatalf("permissive: unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("permissive: expected %s, got %s", tt.want, got)
			}

			got, err = ParseAlgorithm(tt.in, PolicyStrict)
			if tt.strictFail {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("strict: expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("strict: expected %s, got %s (%v)", tt.want, got, err)
			}
		})
	}
}

// TestAlgorithmMetadata tests algorithm helpers
func TestAlgorithmMetadata(t *testing.T) {
	tests := []struct {
		alg     Algorithm
		size    int
		uriName string
	}{
		{AlgorithmSHA1, 20, "SHA1"},
		{AlgorithmSHA256, 32, "SHA256"},
		{AlgorithmSHA512, 64, "SHA512"},
	}
	for _, tt := range tests {
		if !tt.alg.Valid() {
			t.Errorf("%s: expected valid", tt.alg)
		}
		if tt.alg.Size() != tt.size {
			t.Errorf("%s: expected size %d, got %d", tt.alg, tt.size, tt.alg.Size())
		}
		if tt.alg.URIName() != tt.uriName {
			t.Errorf("%s: expected uri name %s, got %s", tt.alg, tt.uriName, tt.alg.URIName())
		}
	}
	if Algorithm("MD5").Valid() || Algorithm("MD5").Size() != 0 {
		t.Error("MD5 must not be valid")
	}
}
