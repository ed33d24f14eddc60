package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meayach/saasify-sub002/pkg/config"
)

type storeConfig struct {
	URL     string        `env:"TEST_STORE_URL" envDefault:"mongodb://localhost:27017"`
	Timeout time.Duration `env:"TEST_STORE_TIMEOUT" envDefault:"5s"`
}

type secretConfig struct {
	Secret string `env:"TEST_WEBHOOK_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg storeConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "mongodb://localhost:27017", cfg.URL)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
	})

	t.Run("cached between calls", func(t *testing.T) {
		var first, second storeConfig
		require.NoError(t, config.Load(&first))
		require.NoError(t, config.Load(&second))
		assert.Equal(t, first, second)
	})

	t.Run("nil pointer rejected", func(t *testing.T) {
		err := config.Load[storeConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("required variable missing", func(t *testing.T) {
		var cfg secretConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("env override", func(t *testing.T) {
		type overridden struct {
			Addr string `env:"TEST_HTTP_ADDR" envDefault:":8080"`
		}
		t.Setenv("TEST_HTTP_ADDR", ":9090")
		var cfg overridden
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":9090", cfg.Addr)
	})
}
