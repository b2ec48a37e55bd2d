package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"pairwatch/config"
	"pairwatch/pkg/storage/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

// newSQLiteClient returns a migrated client on a private in-memory database.
func newSQLiteClient(t *testing.T) *postgres.PostgresClient {
	t.Helper()
	client, err := postgres.NewClientWithDialector(sqlite.Open(":memory:"))
	require.NoError(t, err)

	// Every new connection would open a fresh in-memory database.
	require.NoError(t, client.ConfigurePool(config.PostgresConfig{MaxOpenConns: 1, MaxIdleConns: 1}))
	require.NoError(t, client.AutoMigrateAlertRecord())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// liveDSN skips the test unless PAIRWATCH_TEST_POSTGRES_DSN points at a server.
func liveDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("PAIRWATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PAIRWATCH_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

// go test -v --run ^TestPostgresInvalidDSN$
func TestPostgresInvalidDSN(t *testing.T) {
	invalidDSN := "host=invalid.invalid port=5432 user=fail password=fail dbname=fail sslmode=disable connect_timeout=1"

	_, err := postgres.NewClient(invalidDSN)
	assert.Error(t, err)
}

func TestSQLiteClientHealthy(t *testing.T) {
	client := newSQLiteClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.True(t, client.IsHealthy(ctx))
	assert.True(t, client.DB.Migrator().HasTable("pair_alert"))
}

// go test -v --run ^TestPostgresClientLive$
func TestPostgresClientLive(t *testing.T) {
	client, err := postgres.NewClient(liveDSN(t))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	require.True(t, client.IsHealthy(ctx))
	require.NoError(t, client.AutoMigrateAlertRecord())
}
