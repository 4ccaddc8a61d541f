package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"letterpod/internal/services"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) (bool, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return false, nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return false, err
	}
	if err := godotenv.Load(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load env file %s: %w", expanded, err)
	}
	return true, nil
}

// EnvFilePath reports the env file named by the config at path (or the
// default locations) without validating the rest of the file, so the env
// file can be loaded before credentials are checked.
func EnvFilePath(path string) (string, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return "", err
	}
	if !exists {
		return defaultEnvFile, nil
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}
	var peek struct {
		Paths struct {
			EnvFile *string `toml:"env_file"`
		} `toml:"paths"`
	}
	if err := toml.Unmarshal(data, &peek); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "config", "parse", resolved, err)
	}
	if peek.Paths.EnvFile == nil {
		return defaultEnvFile, nil
	}
	return strings.TrimSpace(*peek.Paths.EnvFile), nil
}
