package exitcode

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/welcomer/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"ConfigError", ConfigError, 3},
		{"QuestionnaireError", QuestionnaireError, 4},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "missing token",
			err:      errors.NewConfigMissingError("WELCOMER_TOKEN"),
			expected: ConfigError,
		},
		{
			name:     "invalid modality",
			err:      errors.NewConfigInvalidError("WELCOMER_MODALITY", "unknown"),
			expected: ConfigError,
		},
		{
			name:     "invalid questionnaire wrapped",
			err:      fmt.Errorf("load: %w", errors.NewQuestionnaireInvalidError("no questions")),
			expected: QuestionnaireError,
		},
		{
			name:     "questionnaire file missing",
			err:      errors.NewFileNotFoundError("q.yaml"),
			expected: QuestionnaireError,
		},
		{
			name:     "platform permission denied",
			err:      errors.NewPermissionDeniedError("open gateway", nil),
			expected: AuthError,
		},
		{
			name:     "platform transient",
			err:      errors.NewTransientError("open gateway", stderrors.New("dial tcp")),
			expected: NetworkError,
		},
		{
			name:     "unauthorized message",
			err:      stderrors.New("401 Unauthorized"),
			expected: AuthError,
		},
		{
			name:     "connection refused",
			err:      stderrors.New("connection refused"),
			expected: NetworkError,
		},
		{
			name:     "unknown command",
			err:      stderrors.New(`unknown command "serve" for "welcomer"`),
			expected: UsageError,
		},
		{
			name:     "unknown flag",
			err:      stderrors.New("unknown flag: --preset-name"),
			expected: UsageError,
		},
		{
			name:     "coded error without a mapping",
			err:      errors.NewAlreadyActiveError("7"),
			expected: GeneralError,
		},
		{
			name:     "generic error",
			err:      stderrors.New("something went wrong"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := DetermineExitCode(tt.err)
			if code != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode_CaseInsensitive(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "mixed case Network",
			err:      stderrors.New("NeTwOrK error"),
			expected: NetworkError,
		},
		{
			name:     "uppercase UNAUTHORIZED",
			err:      stderrors.New("UNAUTHORIZED access"),
			expected: AuthError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := DetermineExitCode(tt.err)
			if code != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, code, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{UsageError, "Usage error (invalid flags or arguments)"},
		{ConfigError, "Configuration error"},
		{QuestionnaireError, "Questionnaire error"},
		{AuthError, "Authentication or permission error"},
		{NetworkError, "Network error"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := GetExitCodeDescription(tt.code)
			if result != tt.expected {
				t.Errorf("GetExitCodeDescription(%d) = %s, want %s", tt.code, result, tt.expected)
			}
		})
	}
}
