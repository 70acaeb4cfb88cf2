package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_UpsertAndGet(t *testing.T) {
	req := require.New(t)
	ddb := newFakeDynamo("connectionId")
	registry := NewRegistry(ddb, "WebSocketConnections")
	ctx := context.Background()

	connectedAt := time.Now().UTC().Format(time.RFC3339Nano)
	req.NoError(registry.Upsert(ctx, Connection{ConnectionID: "conn1", ConnectedAt: connectedAt}))

	conn, err := registry.Get(ctx, "conn1")
	req.NoError(err)
	req.Equal("conn1", conn.ConnectionID)
	req.Empty(conn.Username)
	req.Equal(connectedAt, conn.ConnectedAt)
}

func TestRegistry_GetMissing(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(newFakeDynamo("connectionId"), "WebSocketConnections")

	_, err := registry.Get(context.Background(), "ghost")
	req.ErrorIs(err, ErrNotFound)
}

func TestRegistry_UpsertIsFullOverwrite(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(newFakeDynamo("connectionId"), "WebSocketConnections")
	ctx := context.Background()

	req.NoError(registry.Upsert(ctx, Connection{ConnectionID: "conn1", Username: "alice", ConnectedAt: "t1"}))
	// A put without username drops the name: callers must carry fields forward.
	req.NoError(registry.Upsert(ctx, Connection{ConnectionID: "conn1", ConnectedAt: "t2"}))

	conn, err := registry.Get(ctx, "conn1")
	req.NoError(err)
	req.Empty(conn.Username)
	req.Equal("t2", conn.ConnectedAt)
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(newFakeDynamo("connectionId"), "WebSocketConnections")
	ctx := context.Background()

	req.NoError(registry.Upsert(ctx, Connection{ConnectionID: "conn1", ConnectedAt: "t1"}))
	req.NoError(registry.Remove(ctx, "conn1"))

	_, err := registry.Get(ctx, "conn1")
	req.ErrorIs(err, ErrNotFound)

	// Second remove of an absent id still succeeds.
	req.NoError(registry.Remove(ctx, "conn1"))
}

func TestRegistry_ListAll(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(newFakeDynamo("connectionId"), "WebSocketConnections")
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		req.NoError(registry.Upsert(ctx, Connection{ConnectionID: id, ConnectedAt: "t"}))
	}

	conns, err := registry.ListAll(ctx)
	req.NoError(err)
	req.Len(conns, 3)

	ids := map[string]bool{}
	for _, c := range conns {
		ids[c.ConnectionID] = true
	}
	req.True(ids["a"] && ids["b"] && ids["c"])
}

func TestRegistry_StorageFaultSurfaces(t *testing.T) {
	req := require.New(t)
	ddb := newFakeDynamo("connectionId")
	ddb.scanErr = errors.New("throttled")
	registry := NewRegistry(ddb, "WebSocketConnections")

	_, err := registry.ListAll(context.Background())
	req.Error(err)
	req.NotErrorIs(err, ErrNotFound)
}
