package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sipeed/twobot/internal/infra"
	"github.com/sipeed/twobot/pkg/api"
	"github.com/sipeed/twobot/pkg/config"
	"github.com/sipeed/twobot/pkg/logger"
	"github.com/sipeed/twobot/pkg/redaction"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

var configOverride string

// SetConfigPath overrides the default config location for this process.
func SetConfigPath(path string) {
	configOverride = path
}

func GetConfigPath() string {
	if configOverride != "" {
		return configOverride
	}
	return filepath.Join(infra.ResolveHomeDir(), "config.json")
}

// LoadConfig loads and validates the config, then applies its logging
// settings. debug forces the DEBUG level.
func LoadConfig(debug bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(GetConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", GetConfigPath(), err)
	}

	if cfg.AccessToken != "" {
		redaction.AddGlobalSecret(cfg.AccessToken)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)

	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return nil, fmt.Errorf("enabling file logging: %w", err)
		}
	}
	return cfg, nil
}

// NewSyncApiSet builds an ApiSet for the gateway's HTTP API from cfg.
func NewSyncApiSet(cfg *config.Config, post bool) *api.ApiSet {
	inv := api.NewInvoker(api.Options{
		BaseURL:     cfg.APIBaseURL(),
		AccessToken: cfg.AccessToken,
		Timeout:     cfg.HTTPTimeoutDuration(),
	}, nil, nil)
	return api.NewApiSet(inv, api.SyncMode{Post: post})
}

// ParseParams decodes a JSON object given on the command line. An empty
// string means no params.
func ParseParams(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("params must be a JSON object: %w", err)
	}
	if params == nil {
		return nil, errors.New("params must be a JSON object")
	}
	return params, nil
}

// PrintResult writes the payload indented, followed by a status line.
func PrintResult(w io.Writer, res api.Result) {
	var out bytes.Buffer
	if len(res.Data) == 0 {
		out.WriteString("(empty)")
	} else if err := json.Indent(&out, res.Data, "", "  "); err != nil {
		out.Write(res.Data)
	}
	fmt.Fprintln(w, out.String())

	status := "ok"
	if !res.OK {
		status = "failed"
	}
	fmt.Fprintf(w, "status: %s\n", status)
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}
