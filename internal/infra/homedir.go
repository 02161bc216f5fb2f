package infra

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveHomeDir returns the directory twobot keeps its config in.
// TWOBOT_HOME wins when set; otherwise ~/.twobot.
func ResolveHomeDir() string {
	if envHome := strings.TrimSpace(os.Getenv("TWOBOT_HOME")); envHome != "" {
		return envHome
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return filepath.Join(os.TempDir(), ".twobot")
	}
	return filepath.Join(home, ".twobot")
}
