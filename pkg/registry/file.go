package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// fileFormat is the layout of a YAML registry file:
//
//	services:
//	  - service: github
//	    secret: JBSWY3DPEHPK3PXP
//	  - service: aws
//	    aliases: [tok_4f1c2e]
//	    secret: 3132333435363738393031323334353637383930
//	    encoding: hex
//	    digits: 8
type fileFormat struct {
	Services []Entry `yaml:"services"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// FromYAML loads a Static registry from the YAML file at path.
func FromYAML(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: failed to read %s: %w", path, err)
	}
	s, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseYAML builds a Static registry from YAML data. Unknown fields are
// rejected and an empty document yields an empty registry.
func ParseYAML(data []byte) (*Static, error) {
	var f fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for i, e := range f.Services {
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: service %d: %w", ErrMalformed, i, err)
		}
	}
	return NewStatic(f.Services...)
}
