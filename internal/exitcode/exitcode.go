package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/welcomer/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates missing or invalid runtime configuration
	ConfigError = 3

	// QuestionnaireError indicates an unreadable or invalid questionnaire
	QuestionnaireError = 4

	// AuthError indicates the platform rejected the bot's credentials or permissions
	AuthError = 5

	// NetworkError indicates the platform could not be reached
	NetworkError = 6
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps coded errors by their code and falls back to the
// message for errors raised outside this module, such as cobra's.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeConfigMissing, errors.ErrCodeConfigInvalid:
		return ConfigError
	case errors.ErrCodeQuestionnaireInvalid, errors.ErrCodeFileNotFound,
		errors.ErrCodeFileReadFailed, errors.ErrCodeFileUnmarshal:
		return QuestionnaireError
	case errors.ErrCodePermissionDenied:
		return AuthError
	case errors.ErrCodeTransient:
		return NetworkError
	}

	errMsg := strings.ToLower(err.Error())

	// Authentication errors
	if strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return AuthError
	}

	// Network errors
	if strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "unreachable") {
		return NetworkError
	}

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") ||
		strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ConfigError:
		return "Configuration error"
	case QuestionnaireError:
		return "Questionnaire error"
	case AuthError:
		return "Authentication or permission error"
	case NetworkError:
		return "Network error"
	default:
		return "Unknown error"
	}
}
