package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startDB reuses TEST_POSTGRES_DSN when set, otherwise boots a Postgres 16 container.
func startDB(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in -short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		pgC, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("conversionsync"),
			tcpostgres.WithUsername("sync"),
			tcpostgres.WithPassword("sync"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			t.Skipf("docker unavailable: %v", err)
		}
		t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

		dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.RunMigration(ctx, filepath.Join("..", "..", "..", "migrations", "0001_init.sql")))
	return db
}

func TestStateStore_RoundTrip(t *testing.T) {
	db := startDB(t)
	store := NewStateStore(db)
	ctx := context.Background()
	key := "test." + time.Now().Format(time.RFC3339Nano)

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, key, "2021-07-02T00:00:00Z"))
	v, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2021-07-02T00:00:00Z", v)

	require.NoError(t, store.Set(ctx, key, "2021-07-03T00:00:00Z"))
	v, _, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "2021-07-03T00:00:00Z", v)

	assert.NoError(t, store.Ready(ctx))
}

func TestConnect_EmptyDSN(t *testing.T) {
	_, err := Connect(context.Background(), "")
	assert.Error(t, err)
}
