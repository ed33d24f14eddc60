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
	mu     sync.RWMutex
	loaded = make(map[string]any)
	onces  = make(map[string]*sync.Once)

	dotenvOnce sync.Once
)

// Load parses environment variables into cfg based on `env:` struct tags.
//
// The first call in the process attempts to read a local .env file; a missing
// file is not an error. Each distinct config type is parsed exactly once and
// cached, so packages can load their own config independently without
// re-reading the environment.
func Load[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
	if cfg == nil {
		return ErrNilPointer
	}

	key := typeName[T]()

	mu.RLock()
	if v, ok := loaded[key]; ok {
		*cfg = v.(T)
		mu.RUnlock()
		return nil
	}
	mu.RUnlock()

	mu.Lock()
	once, ok := onces[key]
	if !ok {
		once = new(sync.Once)
		onces[key] = once
	}
	mu.Unlock()

	var parseErr error
	once.Do(func() {
		if err := env.Parse(cfg); err != nil {
			parseErr = errors.Join(ErrParsingConfig, err)
			return
		}
		mu.Lock()
		loaded[key] = *cfg
		mu.Unlock()
	})
	if parseErr != nil {
		return parseErr
	}

	mu.RLock()
	defer mu.RUnlock()
	if v, ok := loaded[key]; ok {
		*cfg = v.(T)
		return nil
	}
	return ErrConfigNotLoaded
}

// MustLoad works like Load but panics on failure. Intended for configuration
// the process cannot start without.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

func typeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
