package core

import (
	"testing"

	"github.com/JonMunkholm/dsvmender/internal/profile"
)

const releasesInput = "version,date,notes\n" +
	"v1,2020-01-01,first\n" +
	"v2,2020-02-01,\n" +
	"\n" +
	"v3,2020-03-01,bug fixes, speedups\n" +
	"v4,2020-04-01\n" +
	"x,y\n"

const releasesOutput = "version,date,notes\n" +
	"v1,2020-01-01,first\n" +
	"v2,2020-02-01,\n" +
	"v3,2020-03-01,bug fixes, speedups\n" +
	"v4,2020-04-01,\n" +
	"x,y\n"

func releasesProfile() profile.Profile {
	return profile.Profile{
		Name:      "releases",
		Delimiter: ",",
		Columns:   3,
		Header:    true,
		Constraints: []profile.Rule{
			{Kind: "starts_with", Value: "v", Columns: []int{0}},
		},
		Estimations: []profile.Rule{
			{Kind: "length", Columns: []int{1}},
			{Kind: "emptiness", Columns: []int{2}},
		},
	}
}

// withProfiles registers the built-in profiles and releases for the test.
func withProfiles(t *testing.T) {
	t.Helper()
	Clear()
	t.Cleanup(Clear)

	builtin, err := profile.Default()
	if err != nil {
		t.Fatalf("profile.Default() error = %v", err)
	}
	if err := RegisterAll(append(builtin, releasesProfile()), false); err != nil {
		t.Fatalf("RegisterAll() error = %v", err)
	}
}
