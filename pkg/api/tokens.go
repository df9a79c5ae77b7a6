package api

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeremyhahn/go-otp/pkg/otp"
	"github.com/jeremyhahn/go-otp/pkg/registry"
)

// ServiceToken is the outcome for one service in a bulk request. Exactly
// one of Result and Err is set.
type ServiceToken struct {
	Service string      `json:"service"`
	Source  SourceName  `json:"source"`
	Result  *otp.Result `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
	Err     error       `json:"-"`
}

// grouper is implemented by sources that hold named groups of secrets.
type grouper interface {
	Group(ctx context.Context, id string) ([]registry.Entry, error)
}

// Tokens computes a token for every service of every listable source. A
// service known to several sources is reported once, from the first source.
// Failures for individual services are reported in their item.
func (s *Service) Tokens(ctx context.Context) ([]ServiceToken, error) {
	if s == nil {
		return nil, ErrNilService
	}
	if ctx == nil {
		ctx = context.Background()
	}

	listed := false
	seen := map[string]struct{}{}
	var out []ServiceToken
	for _, src := range s.sources {
		lister, ok := src.Registry.(registry.Lister)
		if !ok {
			continue
		}
		listed = true

		entries, err := lister.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}
		for _, e := range entries {
			if _, dup := seen[e.Service]; dup {
				continue
			}
			seen[e.Service] = struct{}{}
			out = append(out, s.entryToken(src.Name, e))
		}
	}

	if !listed {
		return nil, fmt.Errorf("%w: no source can list services", ErrNoSources)
	}
	s.log.Debug("listed tokens", zap.Int("services", len(out)))
	return out, nil
}

// GroupTokens computes a token for every entry of group id, taken from the
// first source that holds the group.
func (s *Service) GroupTokens(ctx context.Context, id string) ([]ServiceToken, error) {
	if s == nil {
		return nil, ErrNilService
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, src := range s.sources {
		g, ok := src.Registry.(grouper)
		if !ok {
			continue
		}
		entries, err := g.Group(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}

		out := make([]ServiceToken, 0, len(entries))
		for _, e := range entries {
			out = append(out, s.entryToken(src.Name, e))
		}
		s.log.Debug("listed group tokens",
			zap.String("group", id), zap.String("source", string(src.Name)), zap.Int("services", len(out)))
		return out, nil
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no source holds groups", ErrNoSources)
	}
	return nil, errors.Join(errs...)
}

func (s *Service) entryToken(src SourceName, e registry.Entry) ServiceToken {
	p := otp.Params{Secret: e.Secret}
	applyEntry(&p, e)

	item := ServiceToken{Service: e.Service, Source: src}
	err := applyURI(&p)
	var res *otp.Result
	if err == nil {
		res, err = s.gen.Generate(p)
	}
	if err != nil {
		s.log.Warn("token generation failed",
			zap.String("service", e.Service), zap.String("source", string(src)), zap.Error(err))
		item.Err = err
		item.Error = err.Error()
		return item
	}
	item.Result = res
	return item
}
