package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeremyhahn/go-otp/pkg/otp"
	"github.com/jeremyhahn/go-otp/pkg/registry"
	"github.com/jeremyhahn/go-otp/pkg/secret"
)

// rfcSecret is the Base32 form of the RFC 4226 seed "12345678901234567890".
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

// at59 pins the clock to T=59, where the RFC 6238 SHA-1 token is 94287082
// and the six digit token is 287082.
var at59 = otp.FixedClock(time.Unix(59, 0))

type stubRegistry struct {
	entry   registry.Entry
	err     error
	calls   int
	service string
}

func (s *stubRegistry) Lookup(ctx context.Context, service string) (registry.Entry, error) {
	s.calls++
	s.service = service
	return s.entry, s.err
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.Clock == nil {
		cfg.Clock = at59
	}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return svc
}

func TestNewServiceErrors(t *testing.T) {
	reg := &stubRegistry{}

	if _, err := NewService(Config{Sources: []Source{{Name: SourceEnv, Registry: reg}, {Name: SourceEnv, Registry: reg}}}); !errors.Is(err, ErrDuplicateSource) {
		t.Fatalf("expected ErrDuplicateSource, got %v", err)
	}
	if _, err := NewService(Config{Sources: []Source{{Name: SourceEnv}}}); err == nil {
		t.Fatal("expected error for source without registry")
	}
	if _, err := NewService(Config{Sources: []Source{{Registry: reg}}}); err == nil {
		t.Fatal("expected error for source without name")
	}
	if _, err := NewService(Config{}); err != nil {
		t.Fatalf("a service without sources is valid, got %v", err)
	}
}

func TestTokenExplicitSecret(t *testing.T) {
	reg := &stubRegistry{err: registry.ErrNotFound}
	svc := newTestService(t, Config{Sources: []Source{{Name: SourceEnv, Registry: reg}}})

	res, err := svc.Token(context.Background(), Request{Service: "github", Secret: rfcSecret, Digits: 8})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.Token != "94287082" {
		t.Fatalf("expected 94287082, got %s", res.Token)
	}
	if reg.calls != 0 {
		t.Fatalf("expected registry not to be consulted, got %d calls", reg.calls)
	}
}

func TestTokenFirstSourceWins(t *testing.T) {
	first := &stubRegistry{entry: registry.Entry{Service: "github", Secret: rfcSecret}}
	second := &stubRegistry{err: errors.New("should not be called")}
	svc := newTestService(t, Config{Sources: []Source{{Name: SourceEnv, Registry: first}, {Name: SourceFile, Registry: second}}})

	res, err := svc.Token(context.Background(), Request{Service: "github"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.Token != "287082" {
		t.Fatalf("expected 287082, got %s", res.Token)
	}
	if first.calls != 1 || second.calls != 0 {
		t.Fatalf("unexpected call counts: first=%d second=%d", first.calls, second.calls)
	}
	if first.service != "github" {
		t.Fatalf("expected lookup for github, got %q", first.service)
	}
}

func TestTokenFallbackOnNotFound(t *testing.T) {
	first := &stubRegistry{err: registry.ErrNotFound}
	second := &stubRegistry{entry: registry.Entry{Service: "github", Secret: rfcSecret}}
	svc := newTestService(t, Config{Sources: []Source{{Name: SourceEnv, Registry: first}, {Name: SourceFile, Registry: second}}})

	if _, err := svc.Token(context.Background(), Request{Service: "github"}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("unexpected call counts: first=%d second=%d", first.calls, second.calls)
	}
}

func TestTokenEntryOverridesRequest(t *testing.T) {
	reg := &stubRegistry{entry: registry.Entry{
		Service:   "aws",
		Secret:    "3132333435363738393031323334353637383930",
		Encoding:  secret.EncodingHex,
		Digits:    8,
		Algorithm: "sha1",
	}}
	svc := newTestService(t, Config{Sources: []Source{{Name: SourceStatic, Registry: reg}}})

	res, err := svc.Token(context.Background(), Request{Service: "aws", Digits: 6, Step: 30, Algorithm: "SHA512"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.Token != "94287082" || res.Digits != 8 || res.Algorithm != otp.AlgorithmSHA1 {
		t.Fatalf("expected entry parameters to win, got %+v", res)
	}
}

func TestTokenProvisioningURI(t *testing.T) {
	svc := newTestService(t, Config{})
	link := "otpauth://totp/ACME:alice@example.com?secret=" + rfcSecret + "&issuer=ACME&digits=8&period=30&algorithm=SHA1"

	res, err := svc.Token(context.Background(), Request{Secret: link, Digits: 6, Algorithm: "SHA256"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.Token != "94287082" || res.Digits != 8 || res.Algorithm != otp.AlgorithmSHA1 {
		t.Fatalf("expected uri parameters to win, got %+v", res)
	}

	_, err = svc.Token(context.Background(), Request{Secret: "otpauth://totp/alice?issuer=ACME"})
	if Classify(err) != KindInput {
		t.Fatalf("expected input error for uri without secret, got %v", err)
	}
	_, err = svc.Token(context.Background(), Request{Secret: "otpauth://hotp/alice?secret=" + rfcSecret})
	if Classify(err) != KindInput {
		t.Fatalf("expected input error for hotp uri, got %v", err)
	}
}

func TestTokenRawSecretFallback(t *testing.T) {
	env := registry.NewEnv(map[string]string{})

	t.Run("long name is used as secret", func(t *testing.T) {
		svc := newTestService(t, Config{Sources: []Source{{Name: SourceEnv, Registry: env}}})
		res, err := svc.Token(context.Background(), Request{Service: rfcSecret})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if res.Token != "287082" {
			t.Fatalf("expected 287082, got %s", res.Token)
		}
	})

	t.Run("works without sources", func(t *testing.T) {
		svc := newTestService(t, Config{})
		if _, err := svc.Token(context.Background(), Request{Service: rfcSecret}); err != nil {
			t.Fatalf("expected success, got %v", err)
		}
	})

	t.Run("short name is not found", func(t *testing.T) {
		svc := newTestService(t, Config{Sources: []Source{{Name: SourceEnv, Registry: env}}})
		_, err := svc.Token(context.Background(), Request{Service: "github"})
		if !errors.Is(err, registry.ErrNotFound) || Classify(err) != KindNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		svc := newTestService(t, Config{Sources: []Source{{Name: SourceEnv, Registry: env}}, RawSecretMinLength: -1})
		if _, err := svc.Token(context.Background(), Request{Service: rfcSecret}); Classify(err) != KindNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	t.Run("hard source error is not masked", func(t *testing.T) {
		broken := &stubRegistry{err: fmt.Errorf("%w: bad file", registry.ErrMalformed)}
		svc := newTestService(t, Config{Sources: []Source{{Name: SourceFile, Registry: broken}}})
		if _, err := svc.Token(context.Background(), Request{Service: rfcSecret}); Classify(err) != KindConfig {
			t.Fatalf("expected config error, got %v", err)
		}
	})

	t.Run("undecodable raw secret", func(t *testing.T) {
		svc := newTestService(t, Config{})
		_, err := svc.Token(context.Background(), Request{Service: "this-is-not-base32!"})
		if !errors.Is(err, secret.ErrInvalidSecret) || Classify(err) != KindInput {
			t.Fatalf("expected invalid secret, got %v", err)
		}
	})
}

func TestTokenInvalidRequest(t *testing.T) {
	svc := newTestService(t, Config{})

	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty", req: Request{}},
		{name: "five digits", req: Request{Secret: rfcSecret, Digits: 5}},
		{name: "negative step", req: Request{Secret: rfcSecret, Step: -30}},
		{name: "unknown encoding", req: Request{Secret: rfcSecret, Encoding: "base64"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Token(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			if Classify(err) != KindInput {
				t.Fatalf("expected input kind, got %s", Classify(err))
			}
		})
	}
}

func TestTokenAlgorithmPolicy(t *testing.T) {
	permissive := newTestService(t, Config{})
	res, err := permissive.Token(context.Background(), Request{Secret: rfcSecret, Algorithm: "MD5"})
	if err != nil || res.Algorithm != otp.AlgorithmSHA1 {
		t.Fatalf("expected SHA-1 fallback, got %+v, %v", res, err)
	}

	strict := newTestService(t, Config{Policy: otp.PolicyStrict})
	_, err = strict.Token(context.Background(), Request{Secret: rfcSecret, Algorithm: "MD5"})
	if !errors.Is(err, otp.ErrInvalidConfig) || Classify(err) != KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestTokenExplicitCounter(t *testing.T) {
	svc := newTestService(t, Config{})
	counter := uint64(7)
	res, err := svc.Token(context.Background(), Request{Secret: rfcSecret, Counter: &counter})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.Token != "162583" || res.Counter != 7 || res.SecondsRemaining != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTokenContextCancelled(t *testing.T) {
	reg := &stubRegistry{entry: registry.Entry{Service: "github", Secret: rfcSecret}}
	svc := newTestService(t, Config{Sources: []Source{{Name: SourceEnv, Registry: reg}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Token(ctx, Request{Service: "github"})
	if !errors.Is(err, context.Canceled) || Classify(err) != KindCanceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if reg.calls != 0 {
		t.Fatalf("expected no lookups after cancellation, got %d", reg.calls)
	}
}

func TestNilService(t *testing.T) {
	var svc *Service
	if _, err := svc.Token(context.Background(), Request{Secret: rfcSecret}); !errors.Is(err, ErrNilService) {
		t.Fatalf("Token: expected ErrNilService, got %v", err)
	}
	if err := svc.Verify(context.Background(), VerifyRequest{}); !errors.Is(err, ErrNilService) {
		t.Fatalf("Verify: expected ErrNilService, got %v", err)
	}
	if _, err := svc.Tokens(context.Background()); !errors.Is(err, ErrNilService) {
		t.Fatalf("Tokens: expected ErrNilService, got %v", err)
	}
	if _, err := svc.GroupTokens(context.Background(), "ops"); !errors.Is(err, ErrNilService) {
		t.Fatalf("GroupTokens: expected ErrNilService, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	reg := &stubRegistry{entry: registry.Entry{Service: "github", Secret: rfcSecret, Digits: 8}}
	svc := newTestService(t, Config{Sources: []Source{{Name: SourceEnv, Registry: reg}}})

	tests := []struct {
		name    string
		req     VerifyRequest
		wantErr error
	}{
		{name: "current code", req: VerifyRequest{Request: Request{Service: "github"}, Code: "94287082"}},
		{name: "previous step within skew", req: VerifyRequest{Request: Request{Service: "github"}, Code: "84755224"}},
		{name: "outside skew", req: VerifyRequest{Request: Request{Service: "github"}, Code: "26969429"}, wantErr: otp.ErrInvalidCode},
		{name: "zero skew means one", req: VerifyRequest{Request: Request{Service: "github"}, Code: "37359152", Skew: 0}},
		{name: "wider skew", req: VerifyRequest{Request: Request{Service: "github"}, Code: "26969429", Skew: 2}},
		{name: "hotp counter", req: VerifyRequest{Request: Request{Secret: rfcSecret, Counter: new(uint64)}, Code: "755224"}},
		{name: "non numeric code", req: VerifyRequest{Request: Request{Service: "github"}, Code: "94x87082"}, wantErr: ErrInvalidRequest},
		{name: "missing code", req: VerifyRequest{Request: Request{Service: "github"}}, wantErr: ErrInvalidRequest},
		{name: "bad secret", req: VerifyRequest{Request: Request{Secret: "not base32!"}, Code: "123456"}, wantErr: otp.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Verify(context.Background(), tt.req)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTokens(t *testing.T) {
	env := registry.NewEnv(map[string]string{
		"GITHUB": rfcSecret,
		"PATH":   "/usr/bin",
	})
	static, err := registry.NewStatic(
		registry.Entry{Service: "github", Secret: "JBSWY3DPEHPK3PXP"},
		registry.Entry{Service: "aws", Secret: "otpauth://totp/AWS:root?secret=" + rfcSecret + "&digits=8"},
		registry.Entry{Service: "broken", Secret: "not base32!"},
	)
	if err != nil {
		t.Fatal(err)
	}
	svc := newTestService(t, Config{Sources: []Source{
		{Name: SourceEnv, Registry: env},
		{Name: SourceStatic, Registry: static},
		{Name: SourceFile, Registry: &stubRegistry{}},
	}})

	items, err := svc.Tokens(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %+v", items)
	}

	byName := map[string]ServiceToken{}
	for _, it := range items {
		byName[it.Service] = it
	}

	if gh := byName["github"]; gh.Source != SourceEnv || gh.Result == nil || gh.Result.Token != "287082" {
		t.Errorf("expected github from env with 287082, got %+v", gh)
	}
	if aws := byName["aws"]; aws.Result == nil || aws.Result.Token != "94287082" {
		t.Errorf("expected aws uri token 94287082, got %+v", aws)
	}
	broken := byName["broken"]
	if broken.Result != nil || !errors.Is(broken.Err, secret.ErrInvalidSecret) || broken.Error == "" {
		t.Errorf("expected per-item error for broken, got %+v", broken)
	}
}

func TestTokensWithoutListers(t *testing.T) {
	svc := newTestService(t, Config{Sources: []Source{{Name: SourceFile, Registry: &stubRegistry{}}}})
	if _, err := svc.Tokens(context.Background()); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestGroupTokens(t *testing.T) {
	env := registry.NewEnv(map[string]string{
		"OTP_SECRETS_OPS": "GitHub=" + rfcSecret + ",AWS=JBSWY3DPEHPK3PXP",
	})
	svc := newTestService(t, Config{Sources: []Source{
		{Name: SourceStatic, Registry: &stubRegistry{}},
		{Name: SourceEnv, Registry: env},
	}})

	items, err := svc.GroupTokens(context.Background(), "ops")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(items) != 2 || items[0].Service != "GitHub" || items[1].Service != "AWS" {
		t.Fatalf("unexpected items %+v", items)
	}
	if items[0].Result == nil || items[0].Result.Token != "287082" {
		t.Fatalf("expected 287082, got %+v", items[0])
	}

	if _, err := svc.GroupTokens(context.Background(), "dev"); Classify(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	none := newTestService(t, Config{})
	if _, err := none.GroupTokens(context.Background(), "ops"); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{context.Canceled, KindCanceled},
		{fmt.Errorf("lookup: %w", context.DeadlineExceeded), KindCanceled},
		{otp.ErrInternal, KindInternal},
		{otp.ErrInvalidConfig, KindConfig},
		{registry.ErrMalformed, KindConfig},
		{ErrDuplicateSource, KindConfig},
		{otp.ErrInvalidInput, KindInput},
		{otp.ErrInvalidCode, KindInput},
		{fmt.Errorf("%w: %w", otp.ErrInvalidInput, secret.ErrInvalidSecret), KindInput},
		{registry.ErrInvalidName, KindInput},
		{errors.Join(fmt.Errorf("env: %w", registry.ErrNotFound), fmt.Errorf("file: %w", registry.ErrNotFound)), KindNotFound},
		{ErrNoSources, KindNotFound},
		{errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestLogsNeverContainSecrets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	env := registry.NewEnv(map[string]string{"GITHUB": "JBSWY3DPEHPK3PXP"})
	svc := newTestService(t, Config{
		Sources: []Source{{Name: SourceEnv, Registry: env}},
		Logger:  zap.New(core),
	})

	ctx := context.Background()
	raw, err := svc.Token(ctx, Request{Service: rfcSecret})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	named, err := svc.Token(ctx, Request{Service: "github"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	_, _ = svc.Token(ctx, Request{Service: "GEZDGNBVGY3TQOJQ!!"})

	if logs.Len() == 0 {
		t.Fatal("expected log entries")
	}
	forbidden := []string{rfcSecret, "JBSWY3DPEHPK3PXP", raw.Token, named.Token, "GEZDGNBVGY3TQOJQ"}
	for _, entry := range logs.All() {
		line := entry.Message + fmt.Sprint(entry.ContextMap())
		for _, f := range forbidden {
			if strings.Contains(line, f) {
				t.Errorf("log entry %q leaks %q", line, f)
			}
		}
	}
}
