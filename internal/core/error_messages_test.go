package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/dsvmender/internal/dsv"
	"github.com/JonMunkholm/dsvmender/internal/mender"
	"github.com/JonMunkholm/dsvmender/internal/profile"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "depth exceeded",
			err:      &mender.RepairError{Row: []string{"a"}, Depth: 30, MaxDepth: 20, Err: mender.ErrDepthExceeded},
			wantCode: "MND001",
		},
		{
			name:     "no solution wrapped in line error",
			err:      &dsv.LineError{Line: 4, Err: &mender.RepairError{Err: mender.ErrNoSolution}},
			wantCode: "MND002",
		},
		{
			name:     "invalid argument",
			err:      fmt.Errorf("%w: no rows", mender.ErrInvalidArgument),
			wantCode: "MND003",
		},
		{
			name:     "unknown profile",
			err:      fmt.Errorf("%w: nope", ErrUnknownProfile),
			wantCode: "PRF001",
		},
		{
			name:     "invalid profile",
			err:      fmt.Errorf("%w: name: failed required", profile.ErrInvalidProfile),
			wantCode: "PRF002",
		},
		{
			name:     "line too long",
			err:      fmt.Errorf("line 3: %w", dsv.ErrLineTooLong),
			wantCode: "FILE002",
		},
		{
			name:     "too many jobs",
			err:      ErrTooManyJobs,
			wantCode: "JOB002",
		},
		{
			name:     "deadline exceeded",
			err:      fmt.Errorf("repair: %w", context.DeadlineExceeded),
			wantCode: "JOB005",
		},
		{
			name:     "connection refused falls back to text",
			err:      errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			wantCode: "LED001",
		},
		{
			name:     "request body too large",
			err:      errors.New("http: request body too large"),
			wantCode: "FILE001",
		},
		{
			name:     "rate limit",
			err:      errors.New("rate limit exceeded"),
			wantCode: "RATE001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("NO SOLUTION for row"),
			wantCode: "MND002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err).Code; got != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestMapReason(t *testing.T) {
	// Reasons read back from the ledger carry the error text only.
	reason := (&mender.RepairError{Row: []string{"x", "y"}, Depth: 1, MaxDepth: 20, Err: mender.ErrNoSolution}).Error()
	if got := MapReason(reason).Code; got != "MND002" {
		t.Errorf("MapReason(%q) code = %q, want MND002", reason, got)
	}
	if got := MapReason(""); got != (UserMessage{}) {
		t.Errorf("MapReason(\"\") = %+v, want empty", got)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrEmptyFile)
	want := "The uploaded file is empty (Code: FILE005). Please upload a file with data rows"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrJobNotFound, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("job abc: %w", ErrJobNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Repair job not found" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if userErr.User.Code != "JOB003" {
			t.Errorf("Code = %q, want JOB003", userErr.User.Code)
		}
		if !errors.Is(userErr, ErrJobNotFound) {
			t.Error("Unwrap() should return original error")
		}
	})
}
