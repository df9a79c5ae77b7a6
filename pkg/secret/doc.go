// Package secret decodes and generates the shared secrets used by one-time
// password algorithms.
//
// Secrets are exchanged as text, almost always RFC 4648 Base32 (the alphabet
// A-Z and 2-7) and occasionally as hexadecimal. Decode turns that text into the
// raw HMAC key bytes:
//
//	key, err := secret.Decode("JBSW Y3DP EHPK 3PXP", secret.EncodingBase32)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Base32
//
// Whitespace and trailing '=' padding are removed and the input is uppercased
// before decoding. Any remaining character outside the Base32 alphabet is an
// error; the decoder never skips characters silently. Bits are packed
// big-endian: five bits per character are accumulated most significant bit
// first and a byte is emitted whenever eight or more bits are buffered, so n
// characters yield floor(n*5/8) bytes.
//
// # Hex
//
// Every character that is not a hex digit is discarded, then pairs are parsed
// into bytes. A trailing unpaired nibble is dropped.
//
// # Generation
//
// Generate returns a random Base32 secret suitable for provisioning a new
// authenticator:
//
//	s, err := secret.Generate(secret.DefaultSize)
package secret
