package core

import (
	"errors"
	"os"
	"syscall"
)

// Exit codes for guided-upscale.
// Signal-based exits follow the Unix 128 + signal number convention.
const (
	// ExitCodeSuccess means the output image was written.
	ExitCodeSuccess = 0

	// ExitCodeError means the upscale failed.
	ExitCodeError = 1

	// ExitCodeConfig means bad flags, environment or config file.
	ExitCodeConfig = 2

	// ExitCodeSIGINT indicates termination due to SIGINT (Ctrl+C), 128 + 2.
	ExitCodeSIGINT = 130

	// ExitCodeSIGTERM indicates termination due to SIGTERM, 128 + 15.
	ExitCodeSIGTERM = 143
)

// ExitCodeName returns a human-readable name for an exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitCodeSuccess:
		return "success"
	case ExitCodeError:
		return "error"
	case ExitCodeConfig:
		return "configuration error"
	case ExitCodeSIGINT:
		return "interrupted (SIGINT)"
	case ExitCodeSIGTERM:
		return "terminated (SIGTERM)"
	default:
		return "unknown"
	}
}

// IsSignalExit returns true if the exit code indicates a signal-based termination.
func IsSignalExit(code int) bool {
	return code == ExitCodeSIGINT || code == ExitCodeSIGTERM
}

// ExitCodeForSignal maps a received signal to its exit code.
func ExitCodeForSignal(sig os.Signal) int {
	if sig == syscall.SIGTERM {
		return ExitCodeSIGTERM
	}
	return ExitCodeSIGINT
}

// ExitCodeForError picks the exit code for a failed run. Configuration
// errors exit with ExitCodeConfig, everything else with ExitCodeError.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ExitCodeConfig
	}
	return ExitCodeError
}
