// Package config fills service configuration structs from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from `env` and `envDefault` struct tags. Services call
// it first and then run their own validation.
func Load(cfg any) error {
	if err := env.ParseWithOptions(cfg, env.Options{}); err != nil {
		return fmt.Errorf("parse config %T: %w", cfg, err)
	}
	return nil
}
