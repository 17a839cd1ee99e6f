// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Storage   StorageConfig
	Server    ServerConfig
	Converter ConverterConfig
	Upload    UploadConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// Debug surfaces raw error detail in API responses and job status
	// blobs. Off by default; failures collapse to boolean false.
	Debug bool
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds library storage configuration.
type StorageConfig struct {
	// BasePath is the root under which all library data lives.
	BasePath string
	// BooksPath holds the canonical book file trees (epub/, mobi/).
	// Defaults to {base}/books.
	BooksPath string
	// ImagesPath holds extracted cover images. Defaults to {base}/images.
	ImagesPath string
	// TempPath receives multipart uploads before ingestion moves them
	// into place. Must be on the same volume as BooksPath for cheap
	// renames; a copy fallback covers the cross-device case.
	// Defaults to {base}/tmp.
	TempPath string
	// DatabasePath is the SQLite database file. Defaults to {base}/bookex.db.
	DatabasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// ConverterConfig holds EPUB-to-MOBI converter configuration.
type ConverterConfig struct {
	// BinDir is where the kindlegen binary lives (downloaded on first
	// use when absent). Defaults to {base}/bin.
	BinDir string
	// Timeout bounds one conversion subprocess; a hung converter is
	// killed and reported as a conversion failure.
	Timeout time.Duration
}

// UploadConfig holds upload endpoint configuration.
type UploadConfig struct {
	// MaxBatchBytes caps one multipart upload request (default: 512 MiB).
	MaxBatchBytes int64
	// RatePerSecond and Burst configure the per-client rate limit on
	// the upload endpoint.
	RatePerSecond float64
	Burst         int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	debug := flag.String("debug", "", "Surface raw error detail in responses (default: false)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	basePath := flag.String("base-path", "", "Base path for library storage")
	booksPath := flag.String("books-path", "", "Path for canonical book files")
	imagesPath := flag.String("images-path", "", "Path for extracted cover images")
	tempPath := flag.String("temp-path", "", "Path for temporary uploads")
	databasePath := flag.String("database-path", "", "Path to the SQLite database file")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	converterBinDir := flag.String("converter-bin-dir", "", "Directory holding the kindlegen binary")
	converterTimeout := flag.String("converter-timeout", "", "Per-file conversion timeout (default: 10m)")

	uploadMaxBytes := flag.String("upload-max-bytes", "", "Max multipart upload size in bytes")
	uploadRate := flag.String("upload-rate", "", "Upload requests per second per client (default: 1)")
	uploadBurst := flag.String("upload-burst", "", "Upload burst size per client (default: 3)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			Debug:       getBoolConfigValue(*debug, "DEBUG", false),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			BasePath:     getConfigValue(*basePath, "BASE_PATH", ""),
			BooksPath:    getConfigValue(*booksPath, "BOOKS_PATH", ""),
			ImagesPath:   getConfigValue(*imagesPath, "IMAGES_PATH", ""),
			TempPath:     getConfigValue(*tempPath, "TEMP_PATH", ""),
			DatabasePath: getConfigValue(*databasePath, "DATABASE_PATH", ""),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Converter: ConverterConfig{
			BinDir: getConfigValue(*converterBinDir, "CONVERTER_BIN_DIR", ""),
		},
		Upload: UploadConfig{
			MaxBatchBytes: int64(getIntConfigValue(*uploadMaxBytes, "UPLOAD_MAX_BYTES", 512<<20)),
			RatePerSecond: float64(getIntConfigValue(*uploadRate, "UPLOAD_RATE", 1)),
			Burst:         getIntConfigValue(*uploadBurst, "UPLOAD_BURST", 3),
		},
	}

	// Parse server timeouts.
	var err error
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}
	if cfg.Converter.Timeout, err = parseDurationValue(*converterTimeout, "CONVERTER_TIMEOUT", "10m"); err != nil {
		return nil, fmt.Errorf("invalid converter timeout: %w", err)
	}

	// Expand storage paths.
	if err := cfg.expandStoragePaths(); err != nil {
		return nil, fmt.Errorf("invalid storage path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.BasePath == "" {
		return errors.New("storage base path cannot be empty after expansion")
	}

	if c.Converter.Timeout <= 0 {
		return errors.New("converter timeout must be positive")
	}

	return nil
}

// expandStoragePaths expands ~ in all storage paths, makes them absolute,
// and fills defaults derived from the base path.
func (c *Config) expandStoragePaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Storage.BasePath, err = expandPath(c.Storage.BasePath, filepath.Join(homeDir, "BookEX")); err != nil {
		return err
	}
	if c.Storage.BooksPath, err = expandPath(c.Storage.BooksPath, filepath.Join(c.Storage.BasePath, "books")); err != nil {
		return err
	}
	if c.Storage.ImagesPath, err = expandPath(c.Storage.ImagesPath, filepath.Join(c.Storage.BasePath, "images")); err != nil {
		return err
	}
	if c.Storage.TempPath, err = expandPath(c.Storage.TempPath, filepath.Join(c.Storage.BasePath, "tmp")); err != nil {
		return err
	}
	if c.Storage.DatabasePath, err = expandPath(c.Storage.DatabasePath, filepath.Join(c.Storage.BasePath, "bookex.db")); err != nil {
		return err
	}
	if c.Converter.BinDir, err = expandPath(c.Converter.BinDir, filepath.Join(c.Storage.BasePath, "bin")); err != nil {
		return err
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
