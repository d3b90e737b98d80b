package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Platform errors (PLATFORM-001 to PLATFORM-099)
	ErrCodePermissionDenied ErrorCode = "PLATFORM-001"
	ErrCodeNotFound         ErrorCode = "PLATFORM-002"
	ErrCodeTransient        ErrorCode = "PLATFORM-003"
	ErrCodePlatform         ErrorCode = "PLATFORM-004"

	// Onboarding errors (ONBOARD-001 to ONBOARD-099)
	ErrCodeAlreadyActive       ErrorCode = "ONBOARD-001"
	ErrCodeChannelUnavailable  ErrorCode = "ONBOARD-002"
	ErrCodeTimeout             ErrorCode = "ONBOARD-003"
	ErrCodeReconcileAlreadyRan ErrorCode = "ONBOARD-004"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigMissing        ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid        ErrorCode = "CONFIG-002"
	ErrCodeQuestionnaireInvalid ErrorCode = "CONFIG-003"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound   ErrorCode = "IO-001"
	ErrCodeFileReadFailed ErrorCode = "IO-002"
	ErrCodeFileUnmarshal  ErrorCode = "IO-005"
)

// WelcomerError represents an enhanced error with code, suggestions, and documentation
type WelcomerError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *WelcomerError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *WelcomerError) Unwrap() error {
	return e.Cause
}

// New creates a new WelcomerError
func New(code ErrorCode, message string) *WelcomerError {
	return &WelcomerError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new WelcomerError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *WelcomerError {
	return &WelcomerError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *WelcomerError) WithSuggestion(suggestion string) *WelcomerError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *WelcomerError) WithSuggestions(suggestions ...string) *WelcomerError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *WelcomerError) WithDocs(url string) *WelcomerError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the outermost WelcomerError in err's chain,
// or the empty code when there is none.
func CodeOf(err error) ErrorCode {
	var werr *WelcomerError
	if errors.As(err, &werr) {
		return werr.Code
	}
	return ""
}

// HasCode reports whether any WelcomerError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var werr *WelcomerError
		if !errors.As(err, &werr) {
			return false
		}
		if werr.Code == code {
			return true
		}
		err = werr.Cause
	}
	return false
}

// Common error constructors for frequently used errors

// NewPermissionDeniedError creates an error for an action the platform refused
func NewPermissionDeniedError(action string, cause error) *WelcomerError {
	return Wrap(ErrCodePermissionDenied, fmt.Sprintf("permission denied: %s", action), cause).
		WithSuggestion("Grant the bot the Manage Roles and Manage Channels permissions").
		WithSuggestion("Move the bot's role above the roles it has to grant")
}

// NewNotFoundError creates an error for a resource that no longer exists
func NewNotFoundError(resource string, cause error) *WelcomerError {
	return Wrap(ErrCodeNotFound, fmt.Sprintf("not found: %s", resource), cause)
}

// NewTransientError creates an error for a retryable platform failure
func NewTransientError(action string, cause error) *WelcomerError {
	return Wrap(ErrCodeTransient, fmt.Sprintf("transient platform error: %s", action), cause).
		WithSuggestion("The request can be retried after a short delay")
}

// NewPlatformError creates an error for any other platform failure
func NewPlatformError(action string, cause error) *WelcomerError {
	return Wrap(ErrCodePlatform, fmt.Sprintf("platform error: %s", action), cause)
}

// NewAlreadyActiveError creates a registry conflict error
func NewAlreadyActiveError(memberID string) *WelcomerError {
	return New(ErrCodeAlreadyActive, fmt.Sprintf("onboarding already in progress for member %s", memberID))
}

// NewChannelUnavailableError creates an error for a session that could not get its private channel
func NewChannelUnavailableError(memberID string, cause error) *WelcomerError {
	return Wrap(ErrCodeChannelUnavailable, fmt.Sprintf("cannot open registration channel for member %s", memberID), cause).
		WithSuggestion("Check that the bot can create channels and categories in the guild")
}

// NewTimeoutError creates an error for an unanswered prompt
func NewTimeoutError(question string) *WelcomerError {
	return New(ErrCodeTimeout, fmt.Sprintf("no answer received for: %s", question))
}

// NewReconcileAlreadyRanError creates an error for a repeated startup sweep
func NewReconcileAlreadyRanError() *WelcomerError {
	return New(ErrCodeReconcileAlreadyRan, "member reconciliation already ran in this process")
}

// NewConfigMissingError creates an error for a required setting that was not provided
func NewConfigMissingError(key string) *WelcomerError {
	return New(ErrCodeConfigMissing, fmt.Sprintf("missing required setting: %s", key)).
		WithSuggestion(fmt.Sprintf("Set the %s environment variable", key))
}

// NewConfigInvalidError creates an error for a setting with an unusable value
func NewConfigInvalidError(key string, details string) *WelcomerError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid setting %s: %s", key, details))
}

// NewQuestionnaireInvalidError creates a questionnaire validation error
func NewQuestionnaireInvalidError(details string) *WelcomerError {
	return New(ErrCodeQuestionnaireInvalid, fmt.Sprintf("invalid questionnaire: %s", details)).
		WithSuggestion("Run 'welcomer questions validate --file <path>' to see validation errors")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *WelcomerError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *WelcomerError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
