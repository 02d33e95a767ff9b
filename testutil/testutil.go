// Package testutil wires in-memory storage for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/meinhoongagan/spa-app/db"
	"github.com/meinhoongagan/spa-app/redis"
)

// SetupDB opens a private in-memory SQLite database, migrates it and
// installs it as db.DB. A single connection serializes transactions the way
// row locks would on postgres.
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := db.Open(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate())
	t.Cleanup(func() {
		_ = sqlDB.Close()
		db.DB = nil
	})
	return conn
}

// SetupRedis starts miniredis and installs a client for it as redis.Client
func SetupRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	redis.Client = client
	t.Cleanup(func() {
		_ = client.Close()
		redis.Client = nil
	})
	return client, mr
}
