package config

import (
	"os"
	"strconv"
	"strings"
)

// Get returns the first non-empty environment variable from the provided keys.
func Get(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// GetBool is Get parsed as a boolean. Unset or unparsable values yield def.
func GetBool(def bool, keys ...string) bool {
	raw := strings.TrimSpace(Get(keys...))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// GetInt is Get parsed as a positive integer. Anything else yields def.
func GetInt(def int, keys ...string) int {
	raw := strings.TrimSpace(Get(keys...))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
