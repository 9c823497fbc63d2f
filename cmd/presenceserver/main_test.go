package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/hangout/internal/config"
	"github.com/cory-johannsen/hangout/internal/gameserver"
	"github.com/cory-johannsen/hangout/internal/protocol"
)

func unreachableDatabaseConfig(t *testing.T) config.Config {
	t.Helper()
	v := config.Defaults()
	v.Set("storage.driver", config.DriverPostgres)
	v.Set("database.host", "127.0.0.1")
	v.Set("database.port", 1)
	cfg, err := config.LoadFromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestOpenBackend_UnreachableDatabaseIsDegraded(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	cfg := unreachableDatabaseConfig(t)

	be, err := openBackend(ctx, cfg, logger)
	require.NoError(t, err)
	assert.True(t, be.degraded)
	assert.Nil(t, be.pool)
	assert.Nil(t, be.rooms)

	engine := newEngine(ctx, cfg, be, logger)
	st := engine.Stats()
	assert.True(t, st.Degraded)
	assert.Equal(t, 3, st.Rooms)
	assert.Zero(t, st.GroundItems)

	client, err := engine.Connect("c1")
	require.NoError(t, err)
	engine.Dispatch(ctx, "c1", protocol.Inbound{
		Event: protocol.EventLogin,
		Data:  []byte(`{"username":"alice","password":"secret1"}`),
	})

	select {
	case env := <-client.Events():
		assert.Equal(t, protocol.EventLoginError, env.Event)
		assert.Equal(t, gameserver.MsgLoginUnavailable, env.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply to login")
	}
	assert.Zero(t, engine.Stats().Sessions)
}

func TestOpenBackend_MemoryDriverLoadsSeed(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	v := config.Defaults()
	v.Set("storage.driver", config.DriverMemory)
	v.Set("storage.seed_file", "../../content/seed.yaml")
	cfg, err := config.LoadFromViper(v)
	require.NoError(t, err)

	be, err := openBackend(ctx, cfg, logger)
	require.NoError(t, err)
	assert.False(t, be.degraded)

	st := newEngine(ctx, cfg, be, logger).Stats()
	assert.False(t, st.Degraded)
	assert.Positive(t, st.Rooms)
	assert.Positive(t, st.GroundItems)
}
