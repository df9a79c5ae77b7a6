package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jeremyhahn/go-otp/pkg/otp"
	"github.com/jeremyhahn/go-otp/pkg/registry"
	"github.com/jeremyhahn/go-otp/pkg/secret"
	"github.com/jeremyhahn/go-otp/pkg/uri"
)

// DefaultRawSecretMinLength is the shortest service name treated as a raw
// secret when no registry knows it.
const DefaultRawSecretMinLength = 16

// SourceName identifies a registered secret source.
type SourceName string

const (
	SourceEnv    SourceName = "env"
	SourceDotEnv SourceName = "dotenv"
	SourceFile   SourceName = "file"
	SourceStatic SourceName = "static"
)

// sourceRequest and sourceRaw label secrets that did not come from a registry.
const (
	sourceRequest SourceName = "request"
	sourceRaw     SourceName = "raw"
)

// Source is a named secret registry.
type Source struct {
	Name     SourceName
	Registry registry.Registry
}

// Config contains the ordered list of sources the service should consult.
type Config struct {
	// Sources are consulted in order; the first match wins.
	Sources []Source
	// Policy decides how unknown algorithm names are handled.
	// Default: otp.PolicyPermissive
	Policy otp.Policy
	// Clock supplies the current time.
	// Default: otp.SystemClock
	Clock otp.Clock
	// Logger receives resolution decisions. Secrets and tokens are never
	// logged.
	// Default: zap.NewNop()
	Logger *zap.Logger
	// RawSecretMinLength is the shortest unknown service name used as a raw
	// secret. Negative disables the fallback.
	// Default: 16
	RawSecretMinLength int
}

var (
	// ErrNoSources indicates a lookup was requested but no source can serve it.
	ErrNoSources = errors.New("api: no secret sources configured")
	// ErrDuplicateSource indicates two sources share a name.
	ErrDuplicateSource = errors.New("api: duplicate source name")
	// ErrInvalidRequest indicates the request failed validation.
	ErrInvalidRequest = errors.New("api: invalid request")
	// ErrNilService indicates a nil service was used.
	ErrNilService = errors.New("api: service is nil")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service resolves secrets and computes tokens. It is safe for concurrent
// use.
type Service struct {
	sources []Source
	gen     *otp.Generator
	clock   otp.Clock
	log     *zap.Logger
	rawMin  int
}

// NewService builds a Service from the supplied configuration.
func NewService(cfg Config) (*Service, error) {
	sources := make([]Source, 0, len(cfg.Sources))
	seen := map[SourceName]struct{}{}
	for i, src := range cfg.Sources {
		if src.Registry == nil {
			return nil, fmt.Errorf("api: source at index %d has no registry", i)
		}
		if src.Name == "" {
			return nil, fmt.Errorf("api: source at index %d has no name", i)
		}
		if _, ok := seen[src.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSource, src.Name)
		}
		seen[src.Name] = struct{}{}
		sources = append(sources, src)
	}

	if cfg.Clock == nil {
		cfg.Clock = otp.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RawSecretMinLength == 0 {
		cfg.RawSecretMinLength = DefaultRawSecretMinLength
	}

	return &Service{
		sources: sources,
		gen:     otp.NewGenerator(otp.WithClock(cfg.Clock), otp.WithPolicy(cfg.Policy)),
		clock:   cfg.Clock,
		log:     cfg.Logger.Named("api"),
		rawMin:  cfg.RawSecretMinLength,
	}, nil
}

// Request identifies a secret and optional parameter overrides. Either
// Service or Secret is required; Secret wins when both are set. Secret may
// be a provisioning URI.
type Request struct {
	Service   string          `validate:"required_without=Secret,max=1024"`
	Secret    string          `validate:"required_without=Service,max=4096"`
	Digits    int             `validate:"omitempty,min=6,max=10"`
	Step      int64           `validate:"omitempty,gt=0"`
	Algorithm string          `validate:"omitempty,max=32"`
	Encoding  secret.Encoding `validate:"omitempty,oneof=base32 hex"`
	Counter   *uint64
}

// Token resolves the request's secret and computes the current token.
//
// Resolution order: an explicit Secret; then each source in order; then, if
// no source knows the service and the name is long enough, the service name
// itself as a raw secret. Registry entry parameters take precedence over the
// request's, and a provisioning URI's parameters take precedence over both.
func (s *Service) Token(ctx context.Context, req Request) (*otp.Result, error) {
	if s == nil {
		return nil, ErrNilService
	}
	if ctx == nil {
		ctx = context.Background()
	}

	params, src, err := s.resolve(ctx, req)
	if err != nil {
		s.log.Warn("token resolution failed",
			s.serviceField(req.Service, src), zap.Error(err))
		return nil, err
	}

	res, err := s.gen.Generate(params)
	if err != nil {
		s.log.Warn("token generation failed",
			s.serviceField(req.Service, src), zap.String("source", string(src)), zap.Error(err))
		return nil, err
	}

	s.log.Debug("token generated",
		s.serviceField(req.Service, src),
		zap.String("source", string(src)),
		zap.Int("digits", res.Digits),
		zap.Int64("step", res.Step),
		zap.Stringer("algorithm", res.Algorithm))
	return res, nil
}

// VerifyRequest is a Request plus the code to check. Counter selects HOTP
// verification against that counter; otherwise the code is checked against
// the current time with Skew steps of tolerance either side.
type VerifyRequest struct {
	Request
	Code string `validate:"required,numeric,min=6,max=10"`
	// Skew is the TOTP tolerance in steps. Zero means the default of one.
	Skew uint `validate:"max=10"`
}

// Verify resolves the request's secret and checks Code against it. A wrong
// code returns otp.ErrInvalidCode.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) error {
	if s == nil {
		return ErrNilService
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	params, src, err := s.resolve(ctx, req.Request)
	if err != nil {
		s.log.Warn("verify resolution failed",
			s.serviceField(req.Service, src), zap.Error(err))
		return err
	}

	if err := s.gen.Validate(params); err != nil {
		return err
	}

	cfg := otp.Config{
		Type:      otp.TypeTOTP,
		Secret:    params.Secret,
		Encoding:  params.Encoding,
		Digits:    uint(params.Digits),
		Period:    uint(params.Step),
		Algorithm: params.Algorithm,
		Skew:      req.Skew,
		Clock:     s.clock,
	}
	if params.Counter != nil {
		cfg.Type = otp.TypeHOTP
		cfg.Counter = *params.Counter
	}

	auth, err := otp.NewAuthenticator(cfg)
	if err != nil {
		return err
	}
	if err := auth.Authenticate(ctx, req.Code); err != nil {
		s.log.Info("code rejected",
			s.serviceField(req.Service, src), zap.String("source", string(src)), zap.Error(err))
		return err
	}

	s.log.Debug("code accepted",
		s.serviceField(req.Service, src), zap.String("source", string(src)))
	return nil
}

// resolve validates req and turns it into generator parameters with
// defaults and the algorithm policy applied.
func (s *Service) resolve(ctx context.Context, req Request) (otp.Params, SourceName, error) {
	if err := validate.Struct(req); err != nil {
		return otp.Params{}, "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := ctx.Err(); err != nil {
		return otp.Params{}, "", err
	}

	params := otp.Params{
		Digits:    req.Digits,
		Step:      req.Step,
		Algorithm: otp.Algorithm(req.Algorithm),
		Encoding:  req.Encoding,
		Counter:   req.Counter,
	}

	var src SourceName
	if req.Secret != "" {
		params.Secret = req.Secret
		src = sourceRequest
	} else {
		entry, name, err := s.lookup(ctx, req.Service)
		switch {
		case err == nil:
			src = name
			params.Secret = entry.Secret
			applyEntry(&params, entry)
		case isNotFound(err) && s.rawMin > 0 && len(req.Service) >= s.rawMin:
			s.log.Debug("no source knows the service, using it as a raw secret")
			src = sourceRaw
			params.Secret = req.Service
		default:
			return otp.Params{}, "", err
		}
	}

	if err := applyURI(&params); err != nil {
		return otp.Params{}, "", err
	}

	alg, err := otp.ParseAlgorithm(string(params.Algorithm), s.gen.Policy())
	if err != nil {
		return otp.Params{}, "", err
	}
	params.Algorithm = alg
	if params.Digits == 0 {
		params.Digits = otp.DefaultDigits
	}
	if params.Step == 0 {
		params.Step = otp.DefaultStep
	}
	return params, src, nil
}

// lookup consults every source in order. Failures of one source do not stop
// the search; if every source fails the errors are joined.
func (s *Service) lookup(ctx context.Context, service string) (registry.Entry, SourceName, error) {
	if len(s.sources) == 0 {
		return registry.Entry{}, "", ErrNoSources
	}

	var errs []error
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return registry.Entry{}, "", err
		}
		entry, err := src.Registry.Lookup(ctx, service)
		if err == nil {
			s.log.Debug("secret resolved",
				zap.String("service", service), zap.String("source", string(src.Name)))
			return entry, src.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
	}

	return registry.Entry{}, "", errors.Join(errs...)
}

// applyEntry copies the entry's non-zero overrides into p.
func applyEntry(p *otp.Params, e registry.Entry) {
	if e.Digits != 0 {
		p.Digits = e.Digits
	}
	if e.Step != 0 {
		p.Step = e.Step
	}
	if strings.TrimSpace(e.Algorithm) != "" {
		p.Algorithm = otp.Algorithm(e.Algorithm)
	}
	if e.Encoding != "" {
		p.Encoding = e.Encoding
	}
}

// serviceField names the service in log entries. Names that were, or could
// have been, used as raw secrets are redacted.
func (s *Service) serviceField(service string, src SourceName) zap.Field {
	switch {
	case src == sourceRaw,
		src == "" && s.rawMin > 0 && len(service) >= s.rawMin:
		return zap.String("service", redacted)
	}
	return zap.String("service", service)
}

const redacted = "***REDACTED***"

// applyURI replaces a provisioning URI secret with the secret and
// parameters it carries.
func applyURI(p *otp.Params) error {
	if !uri.IsProvisioningURI(p.Secret) {
		return nil
	}
	u, err := uri.Parse(p.Secret)
	if err != nil {
		return fmt.Errorf("%w: %w", otp.ErrInvalidInput, err)
	}
	if !u.HasSecret() {
		return fmt.Errorf("%w: %w", otp.ErrInvalidInput, uri.ErrMissingSecret)
	}
	p.Secret = u.Secret
	p.Digits = u.Digits
	p.Step = u.Step
	p.Algorithm = otp.Algorithm(u.Algorithm)
	p.Encoding = secret.EncodingBase32
	return nil
}

// isNotFound reports whether err only says that no source knows the service.
func isNotFound(err error) bool {
	if errors.Is(err, ErrNoSources) {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if !isNotFound(e) {
				return false
			}
		}
		return true
	}
	return errors.Is(err, registry.ErrNotFound) || errors.Is(err, registry.ErrInvalidName)
}
