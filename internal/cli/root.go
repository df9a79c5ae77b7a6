// Package cli implements the otpctl command tree.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeremyhahn/go-otp/internal/config"
	"github.com/jeremyhahn/go-otp/internal/logging"
	"github.com/jeremyhahn/go-otp/pkg/api"
	"github.com/jeremyhahn/go-otp/pkg/otp"
	"github.com/jeremyhahn/go-otp/pkg/registry"
)

// Options wires the command tree to its environment.
type Options struct {
	// Version is reported by --version.
	Version string
	// Environ is the process environment in KEY=value form.
	// Default: os.Environ()
	Environ []string
	// Stdout and Stderr receive command output and logs.
	Stdout io.Writer
	Stderr io.Writer
	// Clock overrides the system clock.
	Clock otp.Clock
}

type globalFlags struct {
	logLevel  string
	logFormat string
	envFiles  []string
	registry  string
	strict    bool
}

// app holds the state shared by subcommands once the root command's
// PersistentPreRunE has run.
type app struct {
	opts  Options
	flags globalFlags
	cfg   config.Config
	log   *zap.Logger
}

// NewRootCommand builds the otpctl root command.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = otp.SystemClock{}
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	a := &app{opts: opts, log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "otpctl",
		Short: "Generate and verify one-time passwords",
		Long: `otpctl computes TOTP and HOTP codes from shared secrets stored in the
environment, dotenv files or a YAML registry, verifies codes and builds
otpauth:// provisioning URIs.`,
		Version:           opts.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}
	root.SetOut(opts.Stdout)
	root.SetErr(opts.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides OTPCTL_LOG_LEVEL)")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "Log format: console, json (overrides OTPCTL_LOG_FORMAT)")
	pf.StringSliceVar(&a.flags.envFiles, "env-file", nil, "Dotenv file holding secrets (repeatable)")
	pf.StringVar(&a.flags.registry, "registry", "", "YAML service registry (overrides OTPCTL_REGISTRY_FILE)")
	pf.BoolVar(&a.flags.strict, "strict", false, "Reject unknown algorithm names instead of using SHA-1")

	root.AddCommand(a.tokenCommand())
	root.AddCommand(a.tokensCommand())
	root.AddCommand(a.verifyCommand())
	root.AddCommand(a.parseCommand())
	root.AddCommand(a.secretCommand())
	root.AddCommand(a.uriCommand())

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Parse(environMap(a.opts.Environ))
	if err != nil {
		return err
	}

	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		cfg.LogFormat = a.flags.logFormat
	}
	if a.flags.registry != "" {
		cfg.RegistryFile = a.flags.registry
	}
	if len(a.flags.envFiles) > 0 {
		cfg.EnvFiles = append(cfg.EnvFiles, a.flags.envFiles...)
	}
	if a.flags.strict {
		cfg.Strict = true
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: a.opts.Stderr,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	a.cfg = cfg
	a.log = log.With(zap.String("command", cmd.Name()))
	return nil
}

// service builds an api.Service over the configured sources. Order: process
// environment, dotenv files, YAML registry.
func (a *app) service() (*api.Service, error) {
	sources := []api.Source{{
		Name:     api.SourceEnv,
		Registry: registry.FromEnviron(secretEnviron(a.opts.Environ)),
	}}

	if len(a.cfg.EnvFiles) > 0 {
		reg, err := registry.FromDotEnv(a.cfg.EnvFiles)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
		sources = append(sources, api.Source{Name: api.SourceDotEnv, Registry: reg})
	}

	if a.cfg.RegistryFile != "" {
		reg, err := registry.FromYAML(a.cfg.RegistryFile)
		if err != nil {
			return nil, err
		}
		sources = append(sources, api.Source{Name: api.SourceFile, Registry: reg})
	}

	a.log.Debug("secret sources configured", zap.Int("count", len(sources)))

	return api.NewService(api.Config{
		Sources:            sources,
		Policy:             a.cfg.Policy(),
		Clock:              a.opts.Clock,
		Logger:             a.log,
		RawSecretMinLength: a.cfg.RawMinLength,
	})
}

func environMap(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = v
		}
	}
	return vars
}

// secretEnviron drops otpctl's own settings so they are never mistaken for
// service secrets.
func secretEnviron(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		if strings.HasPrefix(kv, config.Prefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
