// Package config loads typed configuration structs from environment
// variables, with an optional .env file for local development.
//
// Each struct type is parsed at most once per process; later calls for the
// same type return the cached copy, so independent packages can declare their
// own Config structs and load them without coordinating.
//
//	type Config struct {
//		Port int           `env:"HTTP_PORT" envDefault:"8080"`
//		DSN  string        `env:"DATABASE_URL,required"`
//		TTL  time.Duration `env:"CACHE_TTL" envDefault:"5m"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilTarget is returned when Load receives a nil pointer.
	ErrNilTarget = errors.New("config: nil target")
	// ErrParse is returned when the environment cannot be parsed into the
	// target struct, wrapped together with the underlying env error.
	ErrParse = errors.New("config: parse environment")
)

var (
	mu     sync.Mutex
	loaded = make(map[string]any)

	dotenvOnce sync.Once
)

// Load populates v from the process environment. The default .env file is
// read once per process before the first parse; a missing file is not an
// error. Successfully parsed types are cached, so repeated calls with the
// same T are cheap and always observe identical values.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilTarget
	}

	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	key := typeKey[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := loaded[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParse, err)
	}

	loaded[key] = *v
	return nil
}

// MustLoad is Load that panics on failure. Use it during startup for
// configuration the process cannot run without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: load %s: %v", typeKey[T](), err))
	}
}

// Reset drops all cached configuration. Intended for tests that mutate the
// environment between loads.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	loaded = make(map[string]any)
}

func typeKey[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return t.String()
}
