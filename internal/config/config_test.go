package config

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func init() {
	log.SetOutput(io.Discard)
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PAYMENT_SERVICE_ADDR", "PAYMOB_TIMEOUT", "VERIFY_CACHE_TTL", "CALLBACK_RATE_RPS", "PAYMOB_CURRENCY", "MIGRATE_ON_START"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8083", cfg.PaymentSvcAddr)
	assert.Equal(t, ":50053", cfg.GRPCHealthAddr)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.VerifyCacheTTL)
	assert.Equal(t, 5.0, cfg.CallbackRateRPS)
	assert.Equal(t, "EGP", cfg.Gateway.Currency)
	assert.False(t, cfg.MigrateOnStart)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PAYMENT_SERVICE_ADDR", ":9000")
	t.Setenv("PAYMOB_TIMEOUT", "3s")
	t.Setenv("PAYMOB_HMAC_SECRET", "s3cret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CALLBACK_RATE_BURST", "7")
	t.Setenv("MIGRATE_ON_START", "true")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.PaymentSvcAddr)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "s3cret", cfg.Gateway.HMACSecret)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, 7, cfg.CallbackRateBurst)
	assert.True(t, cfg.MigrateOnStart)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("PAYMOB_TIMEOUT", "soon")
	t.Setenv("VERIFY_CACHE_TTL", "-1m")
	t.Setenv("REDIS_DB", "two")
	t.Setenv("CALLBACK_RATE_RPS", "fast")

	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.VerifyCacheTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 5.0, cfg.CallbackRateRPS)
}
