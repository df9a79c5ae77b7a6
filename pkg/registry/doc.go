// Package registry maps service names to shared secrets.
//
// Three sources are provided:
//
//   - Env reads environment variables. A service name maps to the variable
//     named by EnvKey, so "github-work" is stored in GITHUB_WORK. List scans
//     every variable that looks like a Base32 secret, and Group parses
//     OTP_SECRETS_<ID>=Name=SECRET,Name2=SECRET2 variables.
//   - Static holds a fixed set of entries, optionally with aliases.
//   - FromYAML loads a Static registry from a YAML services file.
//
// Registries are immutable after construction and safe for concurrent use.
// Lookups return ErrNotFound when nothing is configured; callers decide
// whether to fall back to another source.
//
// Example:
//
//	reg := registry.FromEnviron(os.Environ())
//	entry, err := reg.Lookup(ctx, "github")
//	if errors.Is(err, registry.ErrNotFound) {
//	    // try the next source
//	}
package registry
