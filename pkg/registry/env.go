package registry

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jeremyhahn/go-otp/pkg/secret"
)

const (
	// DefaultMinSecretLength is the shortest value List treats as a secret.
	DefaultMinSecretLength = 16

	// GroupPrefix prefixes variables holding a comma separated group of
	// Name=SECRET pairs.
	GroupPrefix = "OTP_SECRETS_"
)

var envKeyPattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

// reservedKeys are never listed as secrets.
var reservedKeys = map[string]struct{}{
	"API_KEY": {},
	"ASSETS":  {},
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithMinSecretLength sets the shortest value List treats as a secret.
func WithMinSecretLength(n int) EnvOption {
	return func(e *Env) {
		if n > 0 {
			e.minLength = n
		}
	}
}

// Env resolves services from environment variables. Each service maps to the
// variable named by EnvKey.
type Env struct {
	vars      map[string]string
	minLength int
}

// NewEnv creates an Env over vars. The map is copied.
func NewEnv(vars map[string]string, opts ...EnvOption) *Env {
	e := &Env{
		vars:      make(map[string]string, len(vars)),
		minLength: DefaultMinSecretLength,
	}
	for k, v := range vars {
		e.vars[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromEnviron creates an Env from KEY=value pairs as returned by os.Environ.
func FromEnviron(environ []string, opts ...EnvOption) *Env {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		vars[k] = v
	}
	return NewEnv(vars, opts...)
}

// FromDotEnv creates an Env from dotenv files. Later files override earlier
// ones. With no paths, ".env" in the working directory is read.
func FromDotEnv(paths []string, opts ...EnvOption) (*Env, error) {
	vars, err := godotenv.Read(paths...)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to read dotenv: %w", err)
	}
	return NewEnv(vars, opts...), nil
}

// Lookup returns the secret stored in the variable EnvKey(service).
func (e *Env) Lookup(ctx context.Context, service string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	key := EnvKey(service)
	name := CanonicalName(service)
	if key == "" || name == "" {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidName, service)
	}

	value := strings.TrimSpace(e.vars[key])
	if value == "" {
		return Entry{}, fmt.Errorf("%w: no secret configured in %s", ErrNotFound, key)
	}
	return Entry{Service: name, Secret: value}, nil
}

// List returns every variable that looks like a Base32 secret, sorted by
// service name. Variables must have an uppercase name, must not be reserved
// or CF_ prefixed, and must hold at least the minimum secret length.
func (e *Env) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]struct{})
	var entries []Entry
	for _, k := range keys {
		v := e.vars[k]
		if !e.isCandidate(k, v) {
			continue
		}
		name := CanonicalName(k)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		entries = append(entries, Entry{Service: name, Secret: strings.TrimSpace(v)})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Service < entries[j].Service
	})
	return entries, nil
}

// Group parses the OTP_SECRETS_<ID> variable for id. The value is a comma
// separated list of Name=SECRET pairs; pairs missing either side are
// skipped. Entries keep the configured names and order.
func (e *Env) Group(ctx context.Context, id string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	suffix := EnvKey(id)
	if suffix == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, id)
	}
	key := GroupPrefix + suffix

	value := strings.TrimSpace(e.vars[key])
	if value == "" {
		return nil, fmt.Errorf("%w: no secrets configured in %s", ErrNotFound, key)
	}

	var entries []Entry
	for _, pair := range strings.Split(value, ",") {
		name, sec, _ := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		sec = strings.TrimSpace(sec)
		if name == "" || sec == "" {
			continue
		}
		entries = append(entries, Entry{Service: name, Secret: sec})
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s holds no Name=SECRET pairs", ErrMalformed, key)
	}
	return entries, nil
}

func (e *Env) isCandidate(key, value string) bool {
	if !envKeyPattern.MatchString(key) || strings.HasPrefix(key, "CF_") {
		return false
	}
	if _, ok := reservedKeys[key]; ok {
		return false
	}
	return secret.IsCandidate(value, e.minLength)
}
