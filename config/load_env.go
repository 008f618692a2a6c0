package config

import (
	"fmt"

	"github.com/subosito/gotenv"
)

// LoadEnv loads config/envs/.env.<env> into the process environment. A
// missing file is reported but leaves the OS environment intact.
func LoadEnv(env string) error {
	envFile := "config/envs/.env." + env
	if err := gotenv.Load(envFile); err != nil {
		return fmt.Errorf("no env file %s, using OS environment: %w", envFile, err)
	}
	return nil
}
