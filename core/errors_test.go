package core

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "message and action",
			err:  &ConfigError{Code: "X", Message: "Bad value", Action: "Fix it"},
			want: "Bad value. Fix it",
		},
		{
			name: "message only",
			err:  &ConfigError{Code: "X", Message: "Bad value"},
			want: "Bad value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigError_Constructors(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name       string
		err        *ConfigError
		wantCode   string
		wantInText string
	}{
		{"missing file", ErrConfigFileMissing("up.yaml", os.ErrNotExist), ErrCodeConfigFileMissing, "up.yaml"},
		{"invalid file", ErrConfigFileInvalid("up.yaml", cause), ErrCodeConfigFileInvalid, "cause"},
		{"split", ErrInvalidSplit(cause), ErrCodeInvalidSplit, "UPSCALE_MIN_TILE_AREA"},
		{"runtime", ErrInvalidRuntime(cause), ErrCodeInvalidRuntime, "UPSCALE_DEVICE_"},
		{"split mode", ErrInvalidSplitMode("hsv", cause), ErrCodeInvalidSplitMode, `"hsv"`},
		{"history", ErrInvalidHistory(cause), ErrCodeInvalidHistory, "UPSCALE_HISTORY_RETENTION_DAYS"},
		{"output", ErrInvalidOutput("out.jpg", cause), ErrCodeInvalidOutput, "out.jpg"},
		{"missing input", ErrMissingInput("guide"), ErrCodeMissingInput, "-guide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if !strings.Contains(tt.err.Error(), tt.wantInText) {
				t.Errorf("Error() = %q, want it to contain %q", tt.err.Error(), tt.wantInText)
			}
			if tt.err.Action == "" {
				t.Error("Action should not be empty")
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	err := ErrConfigFileMissing("up.yaml", os.ErrNotExist)
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected errors.Is to find os.ErrNotExist")
	}
	if ErrMissingInput("source").Unwrap() != nil {
		t.Error("expected nil cause for missing input")
	}
}

func TestIsConfigError(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		configErr := ErrMissingInput("source")
		result, ok := IsConfigError(configErr)
		if !ok || result != configErr {
			t.Error("expected IsConfigError to return the same ConfigError")
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		configErr := ErrMissingInput("source")
		result, ok := IsConfigError(fmt.Errorf("startup: %w", configErr))
		if !ok || result != configErr {
			t.Error("expected IsConfigError to unwrap to the ConfigError")
		}
	})

	t.Run("regular error", func(t *testing.T) {
		result, ok := IsConfigError(errors.New("regular error"))
		if ok || result != nil {
			t.Error("expected IsConfigError to return false for regular error")
		}
	})

	t.Run("nil", func(t *testing.T) {
		if _, ok := IsConfigError(nil); ok {
			t.Error("expected IsConfigError to return false for nil")
		}
	})
}

func TestGetErrorCode(t *testing.T) {
	if code := GetErrorCode(ErrInvalidSplitMode("x", nil)); code != ErrCodeInvalidSplitMode {
		t.Errorf("GetErrorCode() = %s, want %s", code, ErrCodeInvalidSplitMode)
	}
	if code := GetErrorCode(errors.New("regular error")); code != "" {
		t.Errorf("GetErrorCode() = %s, want empty", code)
	}
	if code := GetErrorCode(nil); code != "" {
		t.Errorf("GetErrorCode(nil) = %s, want empty", code)
	}
}
