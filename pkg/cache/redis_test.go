package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

func TestNewRedisDisabledReturnsNil(t *testing.T) {
	client, err := NewRedis(config.RedisConfig{Enabled: false, Host: "localhost", Port: 6379})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisUnreachable(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}

func TestProbeWithoutClientIsHealthy(t *testing.T) {
	assert.NoError(t, NewProbe(nil).PingContext(context.Background()))
}
