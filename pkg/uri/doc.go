// Package uri parses and builds otpauth:// provisioning URIs, the format
// authenticator apps use to transfer OTP configuration by QR code or link:
//
//	otpauth://totp/ACME:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=ACME&algorithm=SHA1&digits=6&period=30
//
// # Parsing
//
// Parse only recognizes the totp type. Anything else, including hotp URIs and
// text that is not a URI at all, yields ErrNotProvisioningURI so callers can
// fall back to treating the input as a raw secret:
//
//	u, err := uri.Parse(input)
//	switch {
//	case errors.Is(err, uri.ErrNotProvisioningURI):
//	    // treat input as a raw secret
//	case err != nil:
//	    return err
//	case !u.HasSecret():
//	    // a provisioning URI, but unusable without a secret
//	}
//
// The label before the first colon is the issuer and the remainder is the
// account; Name composes them as "Issuer (account)". Missing parameters take
// the authenticator defaults: 6 digits, a 30 second period and SHA-1.
// Algorithm names are normalized to SHA-1, SHA-256 or SHA-512; anything else
// becomes SHA-1.
//
// # Building
//
// URI.String renders the conventional form, and Generate enrolls a new TOTP
// key with a random secret. PNG renders a URI as a QR code.
package uri
