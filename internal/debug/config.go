package debug

import (
	"os"
	"strconv"
)

// Config holds debug mode configuration for the Server and Agent processes.
type Config struct {
	// Enabled is the global debug on/off switch.
	Enabled bool

	// Mode describes the runtime environment ("debug", "staging", "production").
	Mode string

	// SingleThreaded forces bg.Sync instead of bg.Async for the rotation and
	// refresh ticks, making tests and traces deterministic.
	SingleThreaded bool
}

// Active is the global debug configuration. Init sets this once during
// process startup; after Init returns, the rest of the code treats Active
// as read-only.
var Active Config

// Init initializes debug configuration from environment variables.
func Init() {
	Active = Config{
		Enabled:        parseBool(os.Getenv("EDGESPIFFE_DEBUG"), false),
		Mode:           getEnvOrDefault("EDGESPIFFE_DEBUG_MODE", "debug"),
		SingleThreaded: parseBool(os.Getenv("EDGESPIFFE_DEBUG_SINGLE_THREAD"), false),
	}

	switch Active.Mode {
	case "debug", "staging", "production":
	default:
		Active.Mode = "debug"
	}

	if Active.SingleThreaded {
		Active.Enabled = true
	}
}

func parseBool(s string, defaultVal bool) bool {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// IsEnabled returns whether debug mode is enabled.
func IsEnabled() bool {
	return Active.Enabled
}
