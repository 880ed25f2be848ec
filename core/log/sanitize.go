package log

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SanitizationMode controls how lock file paths appear in logs
type SanitizationMode int

const (
	// ProductionMode hashes the directory part of a path
	ProductionMode SanitizationMode = iota
	// DevelopmentMode shows a truncated path
	DevelopmentMode
	// DebugMode shows the full path
	DebugMode
)

// ModeFromEnv reads PROJLOCK_LOG_MODE, defaulting to DebugMode.
func ModeFromEnv() SanitizationMode {
	switch strings.ToLower(os.Getenv("PROJLOCK_LOG_MODE")) {
	case "production":
		return ProductionMode
	case "development":
		return DevelopmentMode
	default:
		return DebugMode
	}
}

// SanitizePath renders a lock file path for logging. The lock name, which
// is the base name, is always kept.
func SanitizePath(path string, mode SanitizationMode) string {
	if path == "" {
		return ""
	}

	switch mode {
	case ProductionMode:
		// Hash the directory to avoid leaking the project location
		dir, name := filepath.Split(path)
		hash := sha256.Sum256([]byte(dir))
		return fmt.Sprintf("hash:%x/%s", hash[:8], name)
	case DevelopmentMode:
		if len(path) <= 40 {
			return path
		}
		return "..." + path[len(path)-37:]
	default:
		return path
	}
}
