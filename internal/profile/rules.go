package profile

import (
	"fmt"
	"regexp"

	"github.com/JonMunkholm/dsvmender/internal/mender"
)

// predicate returns the rule as a field predicate.
func (r Rule) predicate() (mender.Predicate, error) {
	var p mender.Predicate

	switch r.Kind {
	case "empty":
		p = mender.IsEmpty
	case "not_empty":
		p = mender.NotEmpty
	case "equals":
		p = mender.Equals(r.Value)
	case "one_of":
		if len(r.Values) == 0 {
			return nil, fmt.Errorf("rule %s: values required", r.Kind)
		}
		p = mender.OneOf(r.Values...)
	case "length":
		if r.Length < 1 {
			return nil, fmt.Errorf("invalid length %d (greater than 0 expected)", r.Length)
		}
		p = mender.LengthEquals(r.Length)
	case "min_length":
		if r.Min < 1 {
			return nil, fmt.Errorf("invalid minimum length %d (greater than 0 expected)", r.Min)
		}
		p = mender.MinLength(r.Min)
	case "max_length":
		if r.Max < 1 {
			return nil, fmt.Errorf("invalid maximum length %d (greater than 0 expected)", r.Max)
		}
		p = mender.MaxLength(r.Max)
	case "length_between":
		if r.Min < 1 {
			return nil, fmt.Errorf("invalid minimum length %d (greater than 0 expected)", r.Min)
		}
		if r.Max < r.Min {
			return nil, fmt.Errorf("invalid maximum length %d (%d or greater expected)", r.Max, r.Min)
		}
		p = mender.LengthBetween(r.Min, r.Max)
	case "pattern":
		re, err := regexp.Compile(r.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", r.Value, err)
		}
		p = mender.Matches(re)
	case "contains":
		if r.Value == "" {
			return nil, fmt.Errorf("rule %s: value required", r.Kind)
		}
		p = mender.Contains(r.Value)
	case "contains_none":
		if r.Value == "" {
			return nil, fmt.Errorf("rule %s: value required", r.Kind)
		}
		p = mender.ContainsNone(r.Value)
	case "starts_with":
		p = mender.HasPrefix(r.Value)
	case "ends_with":
		p = mender.HasSuffix(r.Value)
	default:
		return nil, fmt.Errorf("rule %s cannot be used as a constraint", r.Kind)
	}

	if r.Negate {
		p = mender.Not(p)
	}
	return p, nil
}

// transform returns the rule as an estimation key. Predicate rules count
// whether the predicate holds.
func (r Rule) transform() (mender.Transform, error) {
	switch r.Kind {
	case "identity":
		return mender.Identity, nil
	case "emptiness":
		return mender.Emptiness, nil
	case "length":
		if r.Length == 0 {
			return mender.Length, nil
		}
	}

	p, err := r.predicate()
	if err != nil {
		return nil, err
	}
	return mender.Flag(p), nil
}
