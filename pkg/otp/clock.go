package otp

import "time"

// Clock abstracts the wall clock so token generation can be pinned to a fixed
// instant in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the current system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
