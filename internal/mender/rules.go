package mender

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// IsEmpty accepts empty values.
func IsEmpty(value string) bool { return value == "" }

// NotEmpty accepts non-empty values.
func NotEmpty(value string) bool { return value != "" }

// Equals accepts exactly want.
func Equals(want string) Predicate {
	return func(value string) bool { return value == want }
}

// OneOf accepts any of the given values.
func OneOf(values ...string) Predicate {
	allowed := slices.Clone(values)
	return func(value string) bool { return slices.Contains(allowed, value) }
}

// LengthEquals accepts values of exactly n characters.
func LengthEquals(n int) Predicate {
	return func(value string) bool { return utf8.RuneCountInString(value) == n }
}

// MinLength accepts values of at least n characters.
func MinLength(n int) Predicate {
	return func(value string) bool { return utf8.RuneCountInString(value) >= n }
}

// MaxLength accepts values of at most n characters.
func MaxLength(n int) Predicate {
	return func(value string) bool { return utf8.RuneCountInString(value) <= n }
}

// LengthBetween accepts values whose character count lies in [lo, hi].
func LengthBetween(lo, hi int) Predicate {
	return func(value string) bool {
		n := utf8.RuneCountInString(value)
		return n >= lo && n <= hi
	}
}

// Matches accepts values fully matched by the pattern.
func Matches(pattern *regexp.Regexp) Predicate {
	return func(value string) bool {
		loc := pattern.FindStringIndex(value)
		return loc != nil && loc[0] == 0 && loc[1] == len(value)
	}
}

// Contains accepts values containing substr.
func Contains(substr string) Predicate {
	return func(value string) bool { return strings.Contains(value, substr) }
}

// ContainsNone accepts values containing none of the characters in chars.
func ContainsNone(chars string) Predicate {
	return func(value string) bool { return !strings.ContainsAny(value, chars) }
}

// HasPrefix accepts values starting with prefix.
func HasPrefix(prefix string) Predicate {
	return func(value string) bool { return strings.HasPrefix(value, prefix) }
}

// HasSuffix accepts values ending with suffix.
func HasSuffix(suffix string) Predicate {
	return func(value string) bool { return strings.HasSuffix(value, suffix) }
}

// Not negates a predicate.
func Not(p Predicate) Predicate {
	return func(value string) bool { return !p(value) }
}

// Identity counts values as they are.
func Identity(value string) any { return value }

// Length counts values by character count.
func Length(value string) any { return utf8.RuneCountInString(value) }

// Emptiness counts values as empty or not.
func Emptiness(value string) any { return value == "" }

// Flag counts values by whether the predicate accepts them.
func Flag(p Predicate) Transform {
	return func(value string) any { return p(value) }
}

// TransformOf adapts a typed key function to a Transform. The key type is
// checked for comparability at compile time.
func TransformOf[K comparable](fn func(value string) K) Transform {
	return func(value string) any { return fn(value) }
}
