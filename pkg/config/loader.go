package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"

	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/validator"
)

// Load parses environment variables into cfg, which must be a pointer to a
// struct using `env` tags. Nested structs are parsed recursively.
//
//	type Config struct {
//	    Port      int    `env:"HTTP_PORT" envDefault:"8080"`
//	    MaxAssets int    `env:"MEDIA_MAX_ASSETS" envDefault:"8" validate:"gte=1"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadAndValidate parses cfg from the environment and then checks its
// `validate` tags.
func LoadAndValidate(cfg any) error {
	if err := Load(cfg); err != nil {
		return err
	}
	if err := validator.Validate(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
