package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://127.0.0.1:5700", cfg.APIBaseURL())
	assert.Equal(t, "0.0.0.0:9444", cfg.WSAddr())
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeoutDuration())
}

func TestAPIBaseURL_KeepsScheme(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "https://gw.example.com/"
	cfg.APIPort = 443

	assert.Equal(t, "https://gw.example.com:443", cfg.APIBaseURL())
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = ""
	cfg.WSPort = 70000
	cfg.WSPath = "ws"
	cfg.Schedules = []ScheduleConfig{{Name: "x"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host must not be empty")
	assert.Contains(t, err.Error(), "ws_port 70000")
	assert.Contains(t, err.Error(), "ws_path")
	assert.Contains(t, err.Error(), "schedules[0]")
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().WSPort, cfg.WSPort)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"host": "10.8.0.1",
		"api_port": 5701,
		"access_token": "from-file",
		"schedules": [{"name":"morning","cron":"0 9 * * *","action":"send_group_msg","params":{"group_id":1}}]
	}`), 0o600))

	t.Setenv("TWOBOT_ACCESS_TOKEN", "from-env")
	t.Setenv("TWOBOT_RATE_LIMIT_ENABLED", "true")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "10.8.0.1", cfg.Host)
	assert.Equal(t, 5701, cfg.APIPort)
	assert.Equal(t, 9444, cfg.WSPort)
	assert.Equal(t, "from-env", cfg.AccessToken)
	assert.True(t, cfg.RateLimit.Enabled)
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "send_group_msg", cfg.Schedules[0].Action)
}

func TestLoadConfig_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfig_RoundTripAndPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.AccessToken = "secret"

	require.NoError(t, SaveConfig(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "secret", loaded.AccessToken)
}
