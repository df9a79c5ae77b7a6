// Package otp provides TOTP (RFC 6238) and HOTP (RFC 4226) generation and
// authentication.
//
// A TOTP code is the HOTP code of the counter floor(now / step). Both are
// 6 to 10 decimal digits taken from an HMAC-SHA-1, SHA-256 or SHA-512 of the
// counter.
//
// # Generating Tokens
//
// Generator computes the current token together with its timing metadata:
//
//	gen := otp.NewGenerator()
//	res, err := gen.Generate(otp.Params{
//	    Secret:    "JBSWY3DPEHPK3PXP",
//	    Digits:    6,
//	    Step:      30,
//	    Algorithm: otp.AlgorithmSHA1,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Token, res.SecondsRemaining, res.ExpiresAt)
//
// Setting Params.Counter computes the code for an explicit counter instead of
// the clock (HOTP, or pinning RFC test vectors). Timing fields are zero in that
// case. GenerateAt and WithClock pin the time:
//
//	gen := otp.NewGenerator(otp.WithClock(otp.FixedClock(time.Unix(59, 0))))
//
// ComputeToken and HOTP expose the raw algorithm over decoded key bytes.
//
// # Algorithm Policy
//
// Provisioning URIs in the wild carry arbitrary algorithm names. By default a
// Generator treats an unknown name as SHA-1, the behaviour of authenticator
// apps. WithPolicy(PolicyStrict) rejects it with ErrInvalidConfig instead.
// Authenticator always validates strictly.
//
// # Verifying Codes
//
// Authenticator checks codes typed by a user. TOTP codes are accepted within
// Skew steps of the current time:
//
//	auth, err := otp.NewAuthenticator(otp.Config{
//	    Type:        otp.TypeTOTP,
//	    Secret:      "3132333435363738393031323334353637383930",
//	    Encoding:    secret.EncodingHex,
//	    Issuer:      "ACME",
//	    AccountName: "alice@example.com",
//	    Digits:      8,
//	    Skew:        2,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := auth.Authenticate(ctx, code); errors.Is(err, otp.ErrInvalidCode) {
//	    // reject the login
//	}
//	link := auth.GetProvisioningURI() // otpauth://totp/ACME:alice@example.com?...
//
// HOTP codes are checked against a stored counter. ValidateCounter returns
// the counter to persist and tolerates LookAhead unused presses:
//
//	auth, _ := otp.NewAuthenticator(otp.Config{Type: otp.TypeHOTP, Secret: key, LookAhead: 3})
//	next, err := auth.ValidateCounter(ctx, code, stored)
//
// # Errors
//
// Failures wrap one of ErrInvalidInput (malformed secret, digits or step),
// ErrInvalidConfig (rejected setting) or ErrInternal (HMAC failure), so
// callers can tell user mistakes from platform mistakes with errors.Is.
//
// # Thread Safety
//
// Generator and Authenticator hold no mutable state and are safe for
// concurrent use.
package otp
