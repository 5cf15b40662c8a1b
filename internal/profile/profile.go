// Package profile loads named repair profiles from YAML.
//
// A profile fixes the delimiter and column count of a file family and
// declares the constraints and estimations used to repair its rows:
//
//	profiles:
//	  - name: releases
//	    delimiter: ","
//	    columns: 3
//	    header: true
//	    optimize_threshold: 1
//	    constraints:
//	      - rule: starts_with
//	        value: "v"
//	        columns: [0]
//	    estimations:
//	      - rule: length
//	      - rule: emptiness
//
// Rules without columns apply to every column.
package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/dsvmender/internal/mender"
)

// MaxFileSize is the largest profile file Load accepts.
const MaxFileSize = 1 << 20

//go:embed profiles.yaml
var defaultProfilesYAML []byte

var validate = newValidator()

// ErrInvalidProfile is wrapped by every profile validation failure.
var ErrInvalidProfile = errors.New("invalid profile")

// File is the root of a profile document.
type File struct {
	Profiles []Profile `yaml:"profiles" validate:"required,min=1,dive"`
}

// Profile describes how to repair one family of files.
type Profile struct {
	Name        string `yaml:"name" validate:"required,max=64,excludesall=/?#%"`
	Description string `yaml:"description"`
	Delimiter   string `yaml:"delimiter" validate:"required"`

	// Columns is the expected field count. 0 takes it from the header line.
	Columns int `yaml:"columns" validate:"omitempty,min=2"`

	MaxDepth int `yaml:"max_depth" validate:"omitempty,min=1"`

	// OptimizeThreshold enables the empty-run pre-pass when set.
	OptimizeThreshold *int `yaml:"optimize_threshold" validate:"omitempty,min=0"`

	// Header marks the first line as a header that is not fitted.
	Header bool `yaml:"header"`

	// Basic adds emptiness and length estimations on every column.
	Basic bool `yaml:"basic"`

	Constraints []Rule `yaml:"constraints" validate:"dive"`
	Estimations []Rule `yaml:"estimations" validate:"dive"`
}

// Rule is one constraint or estimation.
type Rule struct {
	Kind    string   `yaml:"rule" validate:"required,oneof=empty not_empty equals one_of length min_length max_length length_between pattern contains contains_none starts_with ends_with identity emptiness"`
	Columns []int    `yaml:"columns" validate:"dive,min=0"`
	Value   string   `yaml:"value"`
	Values  []string `yaml:"values"`
	Length  int      `yaml:"length" validate:"min=0"`
	Min     int      `yaml:"min" validate:"min=0"`
	Max     int      `yaml:"max" validate:"min=0"`
	Negate  bool     `yaml:"negate"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns the built-in profiles.
func Default() ([]Profile, error) {
	return Parse(defaultProfilesYAML)
}

// Load reads and validates a profile file.
func Load(path string) ([]Profile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat profile file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: profile file %s is %d bytes (max %d)", ErrInvalidProfile, path, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	profiles, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profiles, nil
}

// Parse decodes and validates a profile document.
func Parse(data []byte) ([]Profile, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %w", ErrInvalidProfile, err)
	}

	if err := validate.Struct(file); err != nil {
		return nil, formatValidation(err)
	}

	seen := make(map[string]bool, len(file.Profiles))
	var errs []string
	for i, p := range file.Profiles {
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("profiles[%d].name: duplicate profile %q", i, p.Name))
		}
		seen[p.Name] = true

		if err := p.Check(); err != nil {
			errs = append(errs, fmt.Sprintf("profiles[%d] (%s): %v", i, p.Name, err))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w:\n  - %s", ErrInvalidProfile, strings.Join(errs, "\n  - "))
	}

	return file.Profiles, nil
}

// Validate checks the profile's struct rules and its rule arguments.
func (p Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return formatValidation(err)
	}
	if err := p.Check(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return nil
}

// Check compiles every rule once so argument errors surface before the first
// file is repaired.
func (p Profile) Check() error {
	length := p.Columns
	if length == 0 {
		length = maxColumn(p) + 1
		if length < 2 {
			length = 2
		}
	}
	_, err := p.Build(length)
	return err
}

// Threshold returns the optimize threshold, -1 when disabled.
func (p Profile) Threshold() int {
	if p.OptimizeThreshold == nil {
		return -1
	}
	return *p.OptimizeThreshold
}

// Build returns a fresh Mender for the profile. columns is used when the
// profile takes its column count from the header.
func (p Profile) Build(columns int) (*mender.Mender, error) {
	if p.Columns > 0 {
		columns = p.Columns
	}

	b := mender.NewBuilder().
		WithDelimiter(p.Delimiter).
		WithLength(columns)
	if p.MaxDepth > 0 {
		b.WithMaxDepth(p.MaxDepth)
	}
	if p.Basic {
		b.WithEstimation(mender.Emptiness).WithEstimation(mender.Length)
	}

	var errs []error
	for i, r := range p.Constraints {
		pred, err := r.predicate()
		if err != nil {
			errs = append(errs, fmt.Errorf("constraints[%d]: %w", i, err))
			continue
		}
		b.WithConstraint(pred, r.Columns...)
	}
	for i, r := range p.Estimations {
		t, err := r.transform()
		if err != nil {
			errs = append(errs, fmt.Errorf("estimations[%d]: %w", i, err))
			continue
		}
		b.WithEstimation(t, r.Columns...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return m, nil
}

func formatValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w:\n  - %s", ErrInvalidProfile, strings.Join(msgs, "\n  - "))
}

func maxColumn(p Profile) int {
	highest := -1
	for _, rules := range [][]Rule{p.Constraints, p.Estimations} {
		for _, r := range rules {
			for _, c := range r.Columns {
				highest = max(highest, c)
			}
		}
	}
	return highest
}
