package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Load fills cfg from the process environment using `env` struct tags.
// Any dotenv files given are read first; missing files are skipped and
// variables already present in the environment are never overridden.
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"3000"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any, dotenvFiles ...string) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
