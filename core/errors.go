package core

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration problem reported to the user together with
// what to change.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // What the user should change
	Err     error  // Underlying cause, if any
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Error codes for configuration errors
const (
	ErrCodeConfigFileMissing = "CONFIG_FILE_MISSING"
	ErrCodeConfigFileInvalid = "CONFIG_FILE_INVALID"
	ErrCodeInvalidSplit      = "INVALID_SPLIT_OPTIONS"
	ErrCodeInvalidRuntime    = "INVALID_RUNTIME"
	ErrCodeInvalidSplitMode  = "INVALID_SPLIT_MODE"
	ErrCodeMissingInput      = "MISSING_INPUT"
	ErrCodeInvalidHistory    = "INVALID_HISTORY"
	ErrCodeInvalidOutput     = "INVALID_OUTPUT"
)

// ErrConfigFileMissing returns an error for a config file that does not exist.
func ErrConfigFileMissing(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFileMissing,
		Message: fmt.Sprintf("Configuration file not found: %s", path),
		Action:  "Check the -config flag or UPSCALE_CONFIG, or remove it to use defaults",
		Err:     err,
	}
}

// ErrConfigFileInvalid returns an error for a config file that cannot be parsed.
func ErrConfigFileInvalid(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFileInvalid,
		Message: fmt.Sprintf("Cannot parse configuration file %s: %v", path, err),
		Action:  "Fix the YAML syntax; see example.yaml for the expected keys",
		Err:     err,
	}
}

// ErrInvalidSplit returns an error for out-of-range tiling options.
func ErrInvalidSplit(err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidSplit,
		Message: fmt.Sprintf("Invalid tiling options: %v", err),
		Action:  "Check UPSCALE_MIN_TILE_AREA, UPSCALE_MAX_TILE_AREA, UPSCALE_OVERLAP and UPSCALE_MAX_DEPTH",
		Err:     err,
	}
}

// ErrInvalidRuntime returns an error for out-of-range device or execution settings.
func ErrInvalidRuntime(err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidRuntime,
		Message: fmt.Sprintf("Invalid runtime settings: %v", err),
		Action:  "Check the UPSCALE_DEVICE_* and UPSCALE_ITERATIONS_K / UPSCALE_LEARNING_RATE values",
		Err:     err,
	}
}

// ErrInvalidSplitMode returns an error for an unknown working color space.
func ErrInvalidSplitMode(mode string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidSplitMode,
		Message: fmt.Sprintf("Unknown split mode %q", mode),
		Action:  "Use \"lab\" or \"rgb\"",
		Err:     err,
	}
}

// ErrInvalidHistory returns an error for bad run-history settings.
func ErrInvalidHistory(err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidHistory,
		Message: fmt.Sprintf("Invalid run history settings: %v", err),
		Action:  "Set UPSCALE_HISTORY_RETENTION_DAYS to 0 or more",
		Err:     err,
	}
}

// ErrInvalidOutput returns an error for an output path that cannot be written.
func ErrInvalidOutput(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidOutput,
		Message: fmt.Sprintf("Cannot write output %s", path),
		Action:  "Use a .png, .tif/.tiff or .bmp path",
		Err:     err,
	}
}

// ErrMissingInput returns an error for a required command-line path.
func ErrMissingInput(flag string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingInput,
		Message: fmt.Sprintf("Missing required flag -%s", flag),
		Action:  "Run with -h for usage",
	}
}

// IsConfigError returns the ConfigError in err's chain, if any.
func IsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// GetErrorCode returns the error code if err is a ConfigError, empty string otherwise.
func GetErrorCode(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
