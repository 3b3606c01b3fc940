// Package config loads named rate policies from a YAML file.
//
//	policies:
//	  api:
//	    rate: 100
//	    period: 1m
//	    burst: 200
//	  login:
//	    rate: 5
//	    period: 15m
//
// burst defaults to rate and cost to 1.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sagarsuperuser/gcra"
)

// ErrUnknownPolicy is returned by Lookup for a name the file does not define.
var ErrUnknownPolicy = errors.New("config: unknown policy")

// Duration accepts Go duration strings ("1m", "15s") or whole seconds.
type Duration time.Duration

// UnmarshalYAML decodes an integer as seconds and a string with
// time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Policy is one named entry of the policies file. A nil Burst and a zero
// Cost take their defaults in Spec.
type Policy struct {
	Rate   int64    `yaml:"rate" validate:"gt=0"`
	Period Duration `yaml:"period" validate:"gt=0"`
	Burst  *int64   `yaml:"burst" validate:"omitempty,gte=0"`
	Cost   int64    `yaml:"cost" validate:"gte=0"`
}

// Spec converts p into a RateSpec, applying defaults.
func (p Policy) Spec() gcra.RateSpec {
	spec := gcra.Every(p.Rate, time.Duration(p.Period))
	if p.Burst != nil {
		spec.Burst = *p.Burst
	}
	if p.Cost > 0 {
		spec.Cost = p.Cost
	}
	return spec
}

// File is a parsed policies file.
type File struct {
	Policies map[string]Policy `yaml:"policies" validate:"required,dive"`
}

// Lookup returns the named policy as a RateSpec.
func (f *File) Lookup(name string) (gcra.RateSpec, error) {
	p, ok := f.Policies[name]
	if !ok {
		return gcra.RateSpec{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p.Spec(), nil
}

// Names returns the policy names in order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Policies))
	for name := range f.Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads and validates the policies file at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates a policies document.
func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every policy.
func (f *File) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
