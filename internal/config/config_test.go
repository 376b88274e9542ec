package config

import (
	"os"
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		wantErr     bool
		errorString string
	}{
		{
			name: "valid sqlite backend config",
			config: Config{
				Port:             "8081",
				DataBackend:      "sqlite",
				SQLiteDBPath:     "./test.db",
				CategoryDefaults: "minimal",
				LogLevel:         "info",
			},
			wantErr: false,
		},
		{
			name: "valid memory backend config",
			config: Config{
				Port:             "8081",
				DataBackend:      "memory",
				CategoryDefaults: "extended",
				LogLevel:         "debug",
			},
			wantErr: false,
		},
		{
			name: "invalid port - non-numeric",
			config: Config{
				Port:             "abc",
				DataBackend:      "sqlite",
				SQLiteDBPath:     "./test.db",
				CategoryDefaults: "minimal",
				LogLevel:         "info",
			},
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name: "invalid port - out of range low",
			config: Config{
				Port:             "0",
				DataBackend:      "sqlite",
				SQLiteDBPath:     "./test.db",
				CategoryDefaults: "minimal",
				LogLevel:         "info",
			},
			wantErr:     true,
			errorString: "invalid port 0: must be between 1 and 65535",
		},
		{
			name: "invalid port - out of range high",
			config: Config{
				Port:             "70000",
				DataBackend:      "sqlite",
				SQLiteDBPath:     "./test.db",
				CategoryDefaults: "minimal",
				LogLevel:         "info",
			},
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name: "invalid data backend",
			config: Config{
				Port:             "8080",
				DataBackend:      "invalid",
				CategoryDefaults: "minimal",
				LogLevel:         "info",
			},
			wantErr:     true,
			errorString: "invalid data backend 'invalid': must be one of [memory sqlite]",
		},
		{
			name: "sqlite backend missing database path",
			config: Config{
				Port:             "8080",
				DataBackend:      "sqlite",
				SQLiteDBPath:     "",
				CategoryDefaults: "minimal",
				LogLevel:         "info",
			},
			wantErr:     true,
			errorString: "SQLite database path cannot be empty when using sqlite backend",
		},
		{
			name: "invalid category defaults",
			config: Config{
				Port:             "8080",
				DataBackend:      "memory",
				CategoryDefaults: "everything",
				LogLevel:         "info",
			},
			wantErr:     true,
			errorString: "invalid category defaults 'everything': must be 'minimal' or 'extended'",
		},
		{
			name: "invalid log level",
			config: Config{
				Port:             "8080",
				DataBackend:      "memory",
				CategoryDefaults: "minimal",
				LogLevel:         "verbose",
			},
			wantErr:     true,
			errorString: "invalid log level 'verbose'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else {
				if err != nil {
					t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	// Save original env vars
	originalVars := map[string]string{
		"PORT":                os.Getenv("PORT"),
		"DATA_BACKEND":        os.Getenv("DATA_BACKEND"),
		"SQLITE_DB_PATH":      os.Getenv("SQLITE_DB_PATH"),
		"CATEGORY_DEFAULTS":   os.Getenv("CATEGORY_DEFAULTS"),
		"DECORATE_CATEGORIES": os.Getenv("DECORATE_CATEGORIES"),
		"LOG_LEVEL":           os.Getenv("LOG_LEVEL"),
	}

	// Clean environment
	for key := range originalVars {
		os.Unsetenv(key)
	}

	// Restore env vars at end of test
	defer func() {
		for key, value := range originalVars {
			if value != "" {
				os.Setenv(key, value)
			} else {
				os.Unsetenv(key)
			}
		}
	}()

	t.Run("default values", func(t *testing.T) {
		cfg := Load()

		if cfg.Port != "8081" {
			t.Errorf("Load() Port = %v, want 8081", cfg.Port)
		}
		if cfg.DataBackend != "sqlite" {
			t.Errorf("Load() DataBackend = %v, want sqlite", cfg.DataBackend)
		}
		if cfg.SQLiteDBPath != "./data/tally.db" {
			t.Errorf("Load() SQLiteDBPath = %v, want ./data/tally.db", cfg.SQLiteDBPath)
		}
		if cfg.CategoryDefaults != "extended" {
			t.Errorf("Load() CategoryDefaults = %v, want extended", cfg.CategoryDefaults)
		}
		if cfg.DecorateCategories {
			t.Errorf("Load() DecorateCategories = true, want false")
		}
		if cfg.LogLevel != "info" {
			t.Errorf("Load() LogLevel = %v, want info", cfg.LogLevel)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		os.Setenv("PORT", "9090")
		os.Setenv("DATA_BACKEND", "memory")
		os.Setenv("SQLITE_DB_PATH", "/tmp/test.db")
		os.Setenv("CATEGORY_DEFAULTS", "minimal")
		os.Setenv("DECORATE_CATEGORIES", "true")
		os.Setenv("LOG_LEVEL", "debug")

		cfg := Load()

		if cfg.Port != "9090" {
			t.Errorf("Load() Port = %v, want 9090", cfg.Port)
		}
		if cfg.DataBackend != "memory" {
			t.Errorf("Load() DataBackend = %v, want memory", cfg.DataBackend)
		}
		if cfg.SQLiteDBPath != "/tmp/test.db" {
			t.Errorf("Load() SQLiteDBPath = %v, want /tmp/test.db", cfg.SQLiteDBPath)
		}
		if cfg.CategoryDefaults != "minimal" {
			t.Errorf("Load() CategoryDefaults = %v, want minimal", cfg.CategoryDefaults)
		}
		if !cfg.DecorateCategories {
			t.Errorf("Load() DecorateCategories = false, want true")
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("Load() LogLevel = %v, want debug", cfg.LogLevel)
		}
	})

	t.Run("invalid environment variables use defaults", func(t *testing.T) {
		os.Setenv("DECORATE_CATEGORIES", "definitely")

		cfg := Load()

		if cfg.DecorateCategories {
			t.Errorf("Load() DecorateCategories = true, want false (default for invalid input)")
		}
	})
}
