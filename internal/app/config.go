package app

import (
	"context"
	"fmt"

	"letterpod/internal/config"
	"letterpod/internal/services/paramstore"
)

// LoadConfig loads the env file named by the config, then reads and
// validates the config, then resolves parameter store references. Env file
// values never override variables that are already set.
func LoadConfig(ctx context.Context, path string) (*config.Config, string, error) {
	envFile, err := config.EnvFilePath(path)
	if err != nil {
		return nil, "", err
	}
	if _, err := config.LoadEnvFile(envFile); err != nil {
		return nil, "", err
	}
	cfg, resolved, _, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if cfg.HasSecretRefs() {
		resolver, err := paramstore.NewFromAWS(ctx, cfg.Secrets.Region, cfg.Secrets.Profile)
		if err != nil {
			return nil, "", fmt.Errorf("parameter store: %w", err)
		}
		if err := cfg.ResolveSecrets(ctx, resolver); err != nil {
			return nil, "", err
		}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}
