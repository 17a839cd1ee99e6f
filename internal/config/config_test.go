package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Storage: StorageConfig{
			BasePath: "/some/path",
		},
		Converter: ConverterConfig{Timeout: 10 * time.Minute},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_LogLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logger.Level = level
		assert.NoError(t, cfg.Validate(), "level %s should be valid", level)
	}

	cfg := validConfig()
	cfg.Logger.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidate_ConverterTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Converter.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestExpandStoragePaths_Defaults(t *testing.T) {
	cfg := &Config{
		Storage: StorageConfig{BasePath: "/data/library"},
	}

	require.NoError(t, cfg.expandStoragePaths())

	assert.Equal(t, "/data/library", cfg.Storage.BasePath)
	assert.Equal(t, filepath.Join("/data/library", "books"), cfg.Storage.BooksPath)
	assert.Equal(t, filepath.Join("/data/library", "images"), cfg.Storage.ImagesPath)
	assert.Equal(t, filepath.Join("/data/library", "tmp"), cfg.Storage.TempPath)
	assert.Equal(t, filepath.Join("/data/library", "bookex.db"), cfg.Storage.DatabasePath)
	assert.Equal(t, filepath.Join("/data/library", "bin"), cfg.Converter.BinDir)
}

func TestExpandPath_Tilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/books", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "books"), got)
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("BOOKEX_TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "BOOKEX_TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "BOOKEX_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "BOOKEX_TEST_MISSING", "default"))
}

func TestGetBoolConfigValue(t *testing.T) {
	assert.True(t, getBoolConfigValue("true", "X", false))
	assert.True(t, getBoolConfigValue("1", "X", false))
	assert.True(t, getBoolConfigValue("YES", "X", false))
	assert.False(t, getBoolConfigValue("no", "X", true))
	assert.True(t, getBoolConfigValue("", "BOOKEX_TEST_MISSING", true))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nBOOKEX_ENVFILE_KEY=hello\nBOOKEX_QUOTED=\"world\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Cleanup(func() {
		os.Unsetenv("BOOKEX_ENVFILE_KEY")
		os.Unsetenv("BOOKEX_QUOTED")
	})

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "hello", os.Getenv("BOOKEX_ENVFILE_KEY"))
	assert.Equal(t, "world", os.Getenv("BOOKEX_QUOTED"))
}

func TestParseDurationValue(t *testing.T) {
	d, err := parseDurationValue("", "BOOKEX_TEST_MISSING", "45s")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, d)

	_, err = parseDurationValue("bogus", "X", "15s")
	assert.Error(t, err)
}
