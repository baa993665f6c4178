// internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Reservation.TTL)
	assert.Equal(t, "redis", cfg.Authority.Provider)
}

func TestValidateRejectsNonPositiveRequestTimeout(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Server.RequestTimeout = 0
	assert.Error(t, cfg.Validate())
}
