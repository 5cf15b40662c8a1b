package core

// error_messages.go maps technical errors to messages users can act on.
//
// Every message carries a code users can quote to support. Codes are grouped
// by category:
//
// # Repair Errors (MND001-MND099)
//
//	MND001 - Too far from the expected column count
//	         Action: Check the profile's column count or raise its max depth
//	         Matches: mender.ErrDepthExceeded, "max depth exceeded"
//
//	MND002 - No candidate satisfied the profile
//	         Action: Review the row, or relax the profile's constraints
//	         Matches: mender.ErrNoSolution, "no solution"
//
//	MND003 - Invalid row or repair settings
//	         Action: Check the request parameters
//	         Matches: mender.ErrInvalidArgument, "invalid argument"
//
// # Profile Errors (PRF001-PRF099)
//
//	PRF001 - Unknown profile
//	PRF002 - Invalid profile definition
//	PRF003 - Column count required for a header-less request
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Line too long
//	FILE004 - No file provided
//	FILE005 - Empty file
//
// # Job Errors (JOB001-JOB099)
//
//	JOB001 - Job cancelled by the user
//	JOB002 - Too many repair jobs in progress
//	JOB003 - Job not found or expired
//	JOB004 - Request cancelled
//	JOB005 - Request timed out
//
// # Ledger Errors (LED001-LED099)
//
//	LED001 - Ledger database unreachable
//	LED002 - Ledger write failed
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Returned when nothing matches; the original error is in the server logs.
//
// Sentinel errors are matched first with errors.Is. Other errors fall back to
// case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/dsvmender/internal/dsv"
	"github.com/JonMunkholm/dsvmender/internal/mender"
	"github.com/JonMunkholm/dsvmender/internal/profile"
)

// Sentinel errors of the repair service.
var (
	ErrUnknownProfile  = errors.New("unknown profile")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobCancelled    = errors.New("job cancelled")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
	ErrNoFile          = errors.New("no file provided")
	ErrColumnsRequired = errors.New("columns required")
	ErrLedger          = errors.New("ledger write failed")
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgDepthExceeded = UserMessage{
		Message: "The row is too far from the expected column count",
		Action:  "Check the profile's column count or raise its max depth",
		Code:    "MND001",
	}
	msgNoSolution = UserMessage{
		Message: "No repair satisfied the profile",
		Action:  "Review the row, or relax the profile's constraints",
		Code:    "MND002",
	}
	msgInvalidArgument = UserMessage{
		Message: "Invalid row or repair settings",
		Action:  "Check the request parameters",
		Code:    "MND003",
	}
	msgUnknownProfile = UserMessage{
		Message: "Unknown profile",
		Action:  "List the available profiles and pick one of them",
		Code:    "PRF001",
	}
	msgInvalidProfile = UserMessage{
		Message: "The profile definition is invalid",
		Action:  "Fix the profile file and restart",
		Code:    "PRF002",
	}
	msgColumnsRequired = UserMessage{
		Message: "The column count is unknown",
		Action:  "Pass the column count or use a profile that sets one",
		Code:    "PRF003",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgLineTooLong = UserMessage{
		Message: "The file contains a line longer than 1MB",
		Action:  "Check that the file uses newline-terminated rows",
		Code:    "FILE002",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a file to repair",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Please upload a file with data rows",
		Code:    "FILE005",
	}
	msgJobCancelled = UserMessage{
		Message: "Repair was cancelled",
		Action:  "Start a new repair when ready",
		Code:    "JOB001",
	}
	msgTooManyJobs = UserMessage{
		Message: "Too many repairs in progress",
		Action:  "Please wait a moment and try again",
		Code:    "JOB002",
	}
	msgJobNotFound = UserMessage{
		Message: "Repair job not found",
		Action:  "The job may have expired. Please start a new repair",
		Code:    "JOB003",
	}
	msgCanceled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "JOB004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "JOB005",
	}
	msgLedgerDown = UserMessage{
		Message: "Unable to reach the repair ledger",
		Action:  "Please try again in a few moments",
		Code:    "LED001",
	}
	msgLedgerWrite = UserMessage{
		Message: "The repair could not be recorded",
		Action:  "The repaired file is still available; contact support to restore the record",
		Code:    "LED002",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// errorSentinels are checked with errors.Is, in order.
var errorSentinels = []struct {
	err error
	msg UserMessage
}{
	{mender.ErrDepthExceeded, msgDepthExceeded},
	{mender.ErrNoSolution, msgNoSolution},
	{mender.ErrInvalidArgument, msgInvalidArgument},
	{ErrUnknownProfile, msgUnknownProfile},
	{profile.ErrInvalidProfile, msgInvalidProfile},
	{ErrColumnsRequired, msgColumnsRequired},
	{ErrFileTooLarge, msgFileTooLarge},
	{dsv.ErrLineTooLong, msgLineTooLong},
	{ErrNoFile, msgNoFile},
	{ErrEmptyFile, msgEmptyFile},
	{ErrJobCancelled, msgJobCancelled},
	{ErrTooManyJobs, msgTooManyJobs},
	{ErrJobNotFound, msgJobNotFound},
	{context.Canceled, msgCanceled},
	{context.DeadlineExceeded, msgTimeout},
	{ErrLedger, msgLedgerWrite},
}

// errorPatterns match error text when no sentinel is wrapped, for example
// reasons read back from the ledger or errors from drivers.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"max depth exceeded", msgDepthExceeded},
	{"no solution", msgNoSolution},
	{"invalid argument", msgInvalidArgument},
	{"unknown profile", msgUnknownProfile},
	{"invalid profile", msgInvalidProfile},
	{"columns required", msgColumnsRequired},
	{"file too large", msgFileTooLarge},
	{"request body too large", msgFileTooLarge},
	{"line too long", msgLineTooLong},
	{"no file provided", msgNoFile},
	{"empty file", msgEmptyFile},
	{"job cancelled", msgJobCancelled},
	{"too many repair jobs", msgTooManyJobs},
	{"job not found", msgJobNotFound},
	{"context canceled", msgCanceled},
	{"context deadline exceeded", msgTimeout},
	{"connection refused", msgLedgerDown},
	{"ledger", msgLedgerWrite},
	{"rate limit", msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
//	_, err := m.Mend(row)
//	msg := MapError(err)
//	// msg.Code == "MND002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	for _, s := range errorSentinels {
		if errors.Is(err, s.err) {
			return s.msg
		}
	}
	return MapReason(err.Error())
}

// MapReason maps an error text to a user message.
func MapReason(reason string) UserMessage {
	if reason == "" {
		return UserMessage{}
	}
	lower := strings.ToLower(reason)
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError formats an error as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether the error maps to a specific message rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
