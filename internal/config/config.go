// Package config loads otpctl settings from OTPCTL_* environment variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/jeremyhahn/go-otp/pkg/otp"
)

// Prefix is prepended to every variable name.
const Prefix = "OTPCTL_"

// ErrInvalid indicates a setting failed validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds the CLI defaults. Command line flags override these values.
type Config struct {
	Digits       int      `env:"DIGITS" envDefault:"6" validate:"min=6,max=10"`
	Step         int64    `env:"STEP" envDefault:"30" validate:"gt=0"`
	Algorithm    string   `env:"ALGORITHM" envDefault:"SHA1"`
	Strict       bool     `env:"STRICT"`
	LogLevel     string   `env:"LOG_LEVEL" envDefault:"warn" validate:"oneof=debug info warn error"`
	LogFormat    string   `env:"LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`
	EnvFiles     []string `env:"ENV_FILES" envSeparator:","`
	RegistryFile string   `env:"REGISTRY_FILE"`
	RawMinLength int      `env:"RAW_MIN_LENGTH" envDefault:"16"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// Parse reads the configuration from vars instead of the process
// environment.
func Parse(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := otp.ParseAlgorithm(cfg.Algorithm, cfg.Policy()); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given dotenv files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Policy returns the algorithm policy selected by Strict.
func (c Config) Policy() otp.Policy {
	if c.Strict {
		return otp.PolicyStrict
	}
	return otp.PolicyPermissive
}
