package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"upscale_backend/imaging"
	"upscale_backend/logging"
	"upscale_backend/pixruntime"
)

var configEnvKeys = []string{
	ConfigFileEnv,
	"UPSCALE_MIN_TILE_AREA", "UPSCALE_MAX_TILE_AREA", "UPSCALE_OVERLAP", "UPSCALE_MAX_DEPTH",
	"UPSCALE_DEVICE_MEMORY_MB", "UPSCALE_DEVICE_POOL_SIZE", "UPSCALE_ACQUIRE_TIMEOUT",
	"UPSCALE_ITERATIONS_K", "UPSCALE_LEARNING_RATE",
	"UPSCALE_SPLIT_MODE", "UPSCALE_HISTORY_DB", "UPSCALE_HISTORY_RETENTION_DAYS", "LOG_FILE", "LOG_LEVEL", "DEV_MODE",
}

// clearConfigEnv blanks every variable LoadConfig reads. Empty values count
// as unset.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upscale.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Split.MinTileArea != 16 || cfg.Split.MaxTileArea != 0 || cfg.Split.Overlap != 0 || cfg.Split.MaxDepth != 32 {
		t.Errorf("Split = %+v, want defaults", cfg.Split)
	}
	if cfg.Runtime.DeviceMemoryMB != pixruntime.DefaultDeviceMemoryMB || cfg.Runtime.PoolSize != pixruntime.DefaultPoolSize {
		t.Errorf("Runtime = %+v, want defaults", cfg.Runtime)
	}
	if cfg.SplitMode != "lab" || cfg.LogLevel != "info" || cfg.DevMode || cfg.HistoryDB != "" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	mode, err := cfg.Mode()
	if err != nil || mode != imaging.SplitModeLAB {
		t.Errorf("Mode() = %v, %v; want LAB", mode, err)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, `
split:
  min_tile_area: 64
  max_tile_area: 4096
  overlap: 2
runtime:
  device_memory_mb: 64
  acquire_timeout: 45s
split_mode: rgb
history_db: runs.db
history_retention_days: 14
log_level: debug
`)
	t.Setenv("UPSCALE_OVERLAP", "4")
	t.Setenv("UPSCALE_SPLIT_MODE", "lab")
	t.Setenv("DEV_MODE", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	// From the file
	if cfg.Split.MinTileArea != 64 || cfg.Split.MaxTileArea != 4096 {
		t.Errorf("Split = %+v, want file values", cfg.Split)
	}
	if cfg.Runtime.DeviceMemoryMB != 64 || cfg.Runtime.AcquireTimeout != 45*time.Second {
		t.Errorf("Runtime = %+v, want file values", cfg.Runtime)
	}
	if cfg.HistoryDB != "runs.db" || cfg.HistoryRetentionDays != 14 || cfg.LogLevel != "debug" {
		t.Errorf("HistoryDB/HistoryRetentionDays/LogLevel = %q/%d/%q", cfg.HistoryDB, cfg.HistoryRetentionDays, cfg.LogLevel)
	}
	// Untouched by the file
	if cfg.Split.MaxDepth != 32 || cfg.Runtime.PoolSize != pixruntime.DefaultPoolSize {
		t.Errorf("defaults lost: %+v / %+v", cfg.Split, cfg.Runtime)
	}
	// Env wins over the file
	if cfg.Split.Overlap != 4 {
		t.Errorf("Overlap = %d, want 4 from env", cfg.Split.Overlap)
	}
	if cfg.SplitMode != "lab" || !cfg.DevMode {
		t.Errorf("SplitMode/DevMode = %q/%v, want env values", cfg.SplitMode, cfg.DevMode)
	}
}

func TestLoadConfig_PathFromEnv(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfigFile(t, "split:\n  max_depth: 8\n")
	t.Setenv(ConfigFileEnv, path)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Split.MaxDepth != 8 {
		t.Errorf("MaxDepth = %d, want 8", cfg.Split.MaxDepth)
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig(writeConfigFile(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Split != DefaultConfig().Split {
		t.Errorf("Split = %+v, want defaults", cfg.Split)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		env      map[string]string
		wantCode string
	}{
		{
			name:     "bad yaml",
			file:     "split: [",
			wantCode: ErrCodeConfigFileInvalid,
		},
		{
			name:     "unknown key",
			file:     "tile_size: 512\n",
			wantCode: ErrCodeConfigFileInvalid,
		},
		{
			name:     "min area zero",
			env:      map[string]string{"UPSCALE_MIN_TILE_AREA": "0"},
			wantCode: ErrCodeInvalidSplit,
		},
		{
			name:     "max below min",
			file:     "split:\n  min_tile_area: 100\n  max_tile_area: 50\n",
			wantCode: ErrCodeInvalidSplit,
		},
		{
			name:     "learning rate too high",
			file:     "runtime:\n  learning_rate: 5\n",
			wantCode: ErrCodeInvalidRuntime,
		},
		{
			name:     "unknown mode",
			env:      map[string]string{"UPSCALE_SPLIT_MODE": "hsv"},
			wantCode: ErrCodeInvalidSplitMode,
		},
		{
			name:     "negative retention",
			file:     "history_retention_days: -3\n",
			wantCode: ErrCodeInvalidHistory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("LoadConfig() expected error")
			}
			if code := GetErrorCode(err); code != tt.wantCode {
				t.Errorf("error code = %q, want %q (%v)", code, tt.wantCode, err)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	clearConfigEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if code := GetErrorCode(err); code != ErrCodeConfigFileMissing {
		t.Errorf("error code = %q, want %q", code, ErrCodeConfigFileMissing)
	}
	if ExitCodeForError(err) != ExitCodeConfig {
		t.Errorf("exit code = %d, want %d", ExitCodeForError(err), ExitCodeConfig)
	}
}

func TestConfig_LoggingConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "warn"
	cfg.LogFile = "upscale.log"
	cfg.DevMode = true

	lc := cfg.LoggingConfig()
	if lc.Level != logging.WarnLevel || lc.FilePath != "upscale.log" || !lc.Development {
		t.Errorf("LoggingConfig() = %+v", lc)
	}

	cfg.LogLevel = "chatty"
	if lc := cfg.LoggingConfig(); lc.Level != logging.InfoLevel {
		t.Errorf("unknown level mapped to %v, want info", lc.Level)
	}
}
