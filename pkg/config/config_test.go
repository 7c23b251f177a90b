package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("HM_STR", "value")
	t.Setenv("HM_INT", "nope")
	t.Setenv("HM_DUR", "15s")
	t.Setenv("HM_BOOL", "true")

	assert.Equal(t, "value", EnvDefault("HM_STR", "def"))
	assert.Equal(t, "def", EnvDefault("HM_MISSING", "def"))
	assert.Equal(t, 7, EnvIntDefault("HM_INT", 7))
	assert.Equal(t, 15*time.Second, EnvDurationDefault("HM_DUR", time.Minute))
	assert.Equal(t, time.Minute, EnvDurationDefault("HM_MISSING", time.Minute))
	assert.True(t, EnvBoolDefault("HM_BOOL", false))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_URL", "http://api.local")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("CACHE_STALE_TIME", "")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("PAGE_SIZE", "")

	cfg := Load()
	assert.Equal(t, "http://api.local", cfg.APIBaseURL)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.CacheStaleTime)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "cache_invalidations", cfg.KafkaTopic)
	assert.Equal(t, 10, cfg.PageSize)

	t.Setenv("PAGE_SIZE", "25")
	assert.Equal(t, 25, Load().PageSize)
}
