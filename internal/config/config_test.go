package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsFromZeroConfig(t *testing.T) {
	t.Parallel()

	var cfg Config
	assert.Equal(t, ":8080", cfg.Server.GetListen())
	assert.Equal(t, "gateway-routes.json", cfg.Document.GetPath())
	assert.Equal(t, 2*time.Second, cfg.Document.GetPollInterval())
	assert.Equal(t, "admin", cfg.Document.GetBootstrapPassword())
	assert.Equal(t, time.Second, cfg.Gate.GetInterval())
	assert.Equal(t, 180*time.Second, cfg.Gate.GetTimeout())
	assert.Equal(t, 24*time.Hour, cfg.Gate.GetFreshness())
	assert.Equal(t, zerolog.InfoLevel, cfg.Logging.ParseLevel())
}

func TestGatePathsDefaultToDocumentDirectory(t *testing.T) {
	t.Parallel()

	var g GateConfig
	assert.Equal(t, filepath.Join("/data", ".sync-complete"), g.GetMarkerPath("/data/gateway-routes.json"))
	assert.Equal(t, filepath.Join("/data", ".sync-progress.json"), g.GetProgressPath("/data/gateway-routes.json"))

	g = GateConfig{MarkerPath: "/elsewhere/done", ProgressPath: "/elsewhere/progress"}
	assert.Equal(t, "/elsewhere/done", g.GetMarkerPath("/data/gateway-routes.json"))
	assert.Equal(t, "/elsewhere/progress", g.GetProgressPath("/data/gateway-routes.json"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LoggingConfig{Level: tt.in}.ParseLevel(), "level %q", tt.in)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	input := `
server:
  listen: ":9090"
  enable_http2: true
document:
  path: /data/gateway-routes.json
  poll_interval: 500ms
  bootstrap_password: s3cret
gate:
  timeout: 30s
logging:
  level: debug
  format: json
`
	cfg, err := LoadFromReader(strings.NewReader(input), "yaml")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.GetListen())
	assert.True(t, cfg.Server.EnableHTTP2)
	assert.Equal(t, "/data/gateway-routes.json", cfg.Document.GetPath())
	assert.Equal(t, 500*time.Millisecond, cfg.Document.GetPollInterval())
	assert.Equal(t, "s3cret", cfg.Document.GetBootstrapPassword())
	assert.Equal(t, 30*time.Second, cfg.Gate.GetTimeout())
	assert.Equal(t, zerolog.DebugLevel, cfg.Logging.ParseLevel())
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()

	input := `
[server]
listen = ":9091"

[document]
poll_interval = "1s"

[logging]
level = "warn"
`
	cfg, err := LoadFromReader(strings.NewReader(input), "toml")
	require.NoError(t, err)
	assert.Equal(t, ":9091", cfg.Server.GetListen())
	assert.Equal(t, time.Second, cfg.Document.GetPollInterval())
	assert.Equal(t, zerolog.WarnLevel, cfg.Logging.ParseLevel())
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("EDGEGATE_TEST_BOOTSTRAP", "from-env")

	input := "document:\n  bootstrap_password: ${EDGEGATE_TEST_BOOTSTRAP}\n"
	cfg, err := LoadFromReader(strings.NewReader(input), "yaml")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Document.GetBootstrapPassword())
}

func TestLoadPicksFormatByExtension(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "edgegate.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  listen: \":7000\"\n"), 0o644))
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.GetListen())

	tomlPath := filepath.Join(dir, "edgegate.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("[server]\nlisten = \":7001\"\n"), 0o644))
	cfg, err = Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Server.GetListen())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"zero config is valid", Config{}, ""},
		{
			"bad poll interval",
			Config{Document: DocumentConfig{PollInterval: "soon"}},
			"document.poll_interval",
		},
		{
			"bad gate timeout",
			Config{Gate: GateConfig{Timeout: "whenever"}},
			"gate.timeout",
		},
		{
			"unknown level",
			Config{Logging: LoggingConfig{Level: "loud"}},
			"logging.level",
		},
		{
			"unknown format",
			Config{Logging: LoggingConfig{Format: "xml"}},
			"logging.format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Document: DocumentConfig{PollInterval: "soon"},
		Logging:  LoggingConfig{Level: "loud"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document.poll_interval")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	t.Run("empty path", func(t *testing.T) {
		t.Parallel()
		cfg, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.GetListen())
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.GetListen())
	})

	t.Run("broken file is still an error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "edgegate.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644))
		_, err := LoadOrDefault(path)
		assert.Error(t, err)
	})
}
