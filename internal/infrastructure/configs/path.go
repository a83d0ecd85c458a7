package configs

import (
	"errors"
	"flag"
	"os"

	"github.com/hilthontt/murmur/internal/infrastructure/env"
)

var ErrConfigNotFound = errors.New("config file not found, use --config or MURMUR_CONFIG")

var configFlag = flag.String("config", "", "path to config file")

// DetermineConfigPath resolves the config file from the --config flag, the
// MURMUR_CONFIG env var, then a list of well-known locations.
func DetermineConfigPath() (string, error) {
	if !flag.Parsed() {
		flag.Parse()
	}

	configPath := *configFlag

	if configPath == "" {
		configPath = env.GetString("MURMUR_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"../../config.yaml", // keep for local dev
			"/etc/murmur/config.yaml",
			"/app/config.yaml", // common in Docker
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	if configPath == "" {
		return "", ErrConfigNotFound
	}

	return configPath, nil
}
