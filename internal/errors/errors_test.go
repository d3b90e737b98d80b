package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeAlreadyActive, "test error message")

	if err.Code != ErrCodeAlreadyActive {
		t.Errorf("expected code %s, got %s", ErrCodeAlreadyActive, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "failed to read file", cause)

	if err.Code != ErrCodeFileReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFileReadFailed, err.Code)
	}

	if err.Cause != cause {
		t.Errorf("expected cause to be set")
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *WelcomerError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeTimeout, "no answer"),
			wantCode: "ONBOARD-003",
			wantMsg:  "no answer",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodePermissionDenied, "create channel", fmt.Errorf("403 Forbidden")),
			wantCode: "PLATFORM-001",
			wantMsg:  "403 Forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain message '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestWithSuggestion(t *testing.T) {
	err := New(ErrCodeConfigMissing, "token missing").
		WithSuggestion("Set WELCOMER_TOKEN")

	if len(err.Suggestions) != 1 {
		t.Errorf("expected 1 suggestion, got %d", len(err.Suggestions))
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "Suggestions:") {
		t.Errorf("error string should contain suggestions section")
	}
	if !strings.Contains(errStr, "Set WELCOMER_TOKEN") {
		t.Errorf("error string should contain suggestion text")
	}
}

func TestWithDocs(t *testing.T) {
	docsURL := "https://github.com/felixgeelhaar/welcomer#configuration"
	err := New(ErrCodeConfigInvalid, "invalid modality").WithDocs(docsURL)

	errStr := err.Error()
	if !strings.Contains(errStr, "Documentation:") || !strings.Contains(errStr, docsURL) {
		t.Errorf("error string should contain documentation link, got: %s", errStr)
	}
}

func TestHasCode(t *testing.T) {
	inner := NewTransientError("create role", fmt.Errorf("502 Bad Gateway"))
	outer := NewChannelUnavailableError("42", inner)
	wrapped := fmt.Errorf("session: %w", outer)

	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"outer code", wrapped, ErrCodeChannelUnavailable, true},
		{"nested code", wrapped, ErrCodeTransient, true},
		{"absent code", wrapped, ErrCodePermissionDenied, false},
		{"plain error", fmt.Errorf("boom"), ErrCodeTransient, false},
		{"nil error", nil, ErrCodeTransient, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode(%v, %s) = %v, want %v", tt.err, tt.code, got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("x: %w", NewAlreadyActiveError("7"))); got != ErrCodeAlreadyActive {
		t.Errorf("expected %s, got %s", ErrCodeAlreadyActive, got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("expected empty code, got %s", got)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name            string
		err             *WelcomerError
		code            ErrorCode
		wantSuggestions bool
	}{
		{"permission denied", NewPermissionDeniedError("create channel", nil), ErrCodePermissionDenied, true},
		{"not found", NewNotFoundError("channel 1", nil), ErrCodeNotFound, false},
		{"transient", NewTransientError("create role", nil), ErrCodeTransient, true},
		{"already active", NewAlreadyActiveError("1"), ErrCodeAlreadyActive, false},
		{"timeout", NewTimeoutError("age"), ErrCodeTimeout, false},
		{"config missing", NewConfigMissingError("WELCOMER_TOKEN"), ErrCodeConfigMissing, true},
		{"questionnaire invalid", NewQuestionnaireInvalidError("no questions"), ErrCodeQuestionnaireInvalid, true},
		{"file unmarshal", NewFileUnmarshalError("q.yaml", "YAML", fmt.Errorf("bad")), ErrCodeFileUnmarshal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, tt.err.Code)
			}
			if tt.wantSuggestions && len(tt.err.Suggestions) == 0 {
				t.Errorf("expected suggestions to be provided")
			}
		})
	}
}
