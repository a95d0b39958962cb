// Package config loads runtime settings from the OTHERWORLDS_* environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// FromEnv fills cfg from environment variables using its `env` struct tags.
// Fields with an envDefault tag fall back to that value when the variable
// is unset, so a bare environment still yields a usable configuration.
func FromEnv(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
