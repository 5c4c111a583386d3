package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// UserConfigPath returns ~/.blockext/config.json.
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".blockext", "config.json"), nil
}

func LoadFromUserConfig() error {
	configPath, err := UserConfigPath()
	if err != nil {
		// Best-effort: if we can't resolve home, just skip file loading.
		return nil
	}
	return LoadFromFile(configPath)
}

// LoadFromFile pushes the string values of a flat JSON object into the
// environment. A missing file is not an error.
func LoadFromFile(configPath string) error {
	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	var cfg map[string]string
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return err
	}

	for key, value := range cfg {
		if value == "" {
			continue
		}
		// Values from ~/.blockext/config.json take precedence over existing env vars.
		_ = os.Setenv(key, value)
	}

	return nil
}
