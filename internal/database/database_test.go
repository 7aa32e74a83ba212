package database

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/recetas/backend/internal/config"
)

func testDBConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     "db.internal",
		Port:     "5433",
		User:     "chef",
		Password: "secret",
		DBName:   "recetas",
		SSLMode:  "disable",
		MaxConns: 20,
		MinConns: 2,
	}
}

func TestPoolConfig(t *testing.T) {
	pc, err := PoolConfig(testDBConfig())
	require.NoError(t, err)

	assert.Equal(t, "db.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
	assert.Equal(t, "recetas", pc.ConnConfig.Database)
	assert.Equal(t, int32(20), pc.MaxConns)
	assert.Equal(t, int32(2), pc.MinConns)
	assert.Equal(t, 5*time.Minute, pc.MaxConnLifetime)
}

func TestPoolConfig_Defaults(t *testing.T) {
	cfg := testDBConfig()
	cfg.MaxConns = 0
	cfg.MinConns = 80

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(50), pc.MaxConns)
	assert.Equal(t, int32(0), pc.MinConns)
}

func TestNewRedis(t *testing.T) {
	client, err := NewRedis(context.Background(), "", slog.Default())
	require.NoError(t, err)
	assert.Nil(t, client)

	_, err = NewRedis(context.Background(), "not a url", slog.Default())
	assert.Error(t, err)
}
