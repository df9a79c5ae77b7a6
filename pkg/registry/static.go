package registry

import (
	"context"
	"fmt"
	"strings"
)

// Static is an immutable in-memory registry.
type Static struct {
	entries []Entry
	index   map[string]int
}

// NewStatic builds a Static registry. Services are matched by CanonicalName,
// aliases verbatim. Entries without a service name or secret, and names or
// aliases claimed twice, are rejected.
func NewStatic(entries ...Entry) (*Static, error) {
	s := &Static{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		name := CanonicalName(e.Service)
		if name == "" {
			return nil, fmt.Errorf("%w: entry %d has no service name", ErrMalformed, i)
		}
		if strings.TrimSpace(e.Secret) == "" {
			return nil, fmt.Errorf("%w: service %q has no secret", ErrMalformed, e.Service)
		}

		keys := append([]string{name}, e.Aliases...)
		for _, k := range keys {
			if _, ok := s.index[k]; ok {
				return nil, fmt.Errorf("%w: %q", ErrDuplicate, k)
			}
			s.index[k] = len(s.entries)
		}

		e.Service = name
		s.entries = append(s.entries, e.clone())
	}
	return s, nil
}

// Lookup finds service by alias or canonical name.
func (s *Static) Lookup(ctx context.Context, service string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if i, ok := s.index[service]; ok {
		return s.entries[i].clone(), nil
	}
	name := CanonicalName(service)
	if name == "" {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidName, service)
	}
	if i, ok := s.index[name]; ok {
		return s.entries[i].clone(), nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// List returns the entries in configuration order.
func (s *Static) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out, nil
}

// Len returns the number of entries.
func (s *Static) Len() int {
	return len(s.entries)
}

// clone copies e so callers never share its Aliases backing array.
func (e Entry) clone() Entry {
	e.Aliases = append([]string(nil), e.Aliases...)
	return e
}
