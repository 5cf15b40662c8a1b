package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/dsvmender/internal/profile"
)

func TestRegistry(t *testing.T) {
	withProfiles(t)

	if diff := cmp.Diff([]string{"csv", "psv", "releases", "tsv"}, Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if got := ProfileCount(); got != 4 {
		t.Errorf("ProfileCount() = %d, want 4", got)
	}

	if err := Register(releasesProfile()); !errors.Is(err, ErrDuplicateProfile) {
		t.Errorf("Register(duplicate) error = %v, want ErrDuplicateProfile", err)
	}

	replacement := releasesProfile()
	replacement.Description = "replaced"
	if err := RegisterAll([]profile.Profile{replacement}, true); err != nil {
		t.Fatalf("RegisterAll(replace) error = %v", err)
	}
	if p, _ := Get("releases"); p.Description != "replaced" {
		t.Errorf("Get(releases).Description = %q, want replaced", p.Description)
	}

	Unregister("releases")
	if _, ok := Get("releases"); ok {
		t.Error("Get(releases) found an unregistered profile")
	}
}

func TestRegister_Invalid(t *testing.T) {
	withProfiles(t)

	bad := releasesProfile()
	bad.Name = "bad"
	bad.Constraints = []profile.Rule{{Kind: "min_length", Min: 0}}
	if err := Register(bad); !errors.Is(err, profile.ErrInvalidProfile) {
		t.Errorf("Register(bad) error = %v, want ErrInvalidProfile", err)
	}
	if _, ok := Get("bad"); ok {
		t.Error("invalid profile was registered")
	}
}

func TestMustRegister_Panics(t *testing.T) {
	withProfiles(t)

	defer func() {
		if recover() == nil {
			t.Error("MustRegister(duplicate) did not panic")
		}
	}()
	MustRegister(releasesProfile())
}
