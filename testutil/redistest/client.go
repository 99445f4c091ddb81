// Package redistest connects tests to the Redis instance named by LENDING_TEST_REDIS_URL.
// Without that variable the tests are skipped.
package redistest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// EnvURL names the environment variable holding the test Redis URL.
const EnvURL = "LENDING_TEST_REDIS_URL"

// Client returns a connected client or skips the test. The client is closed when the test finishes.
func Client(t testing.TB) *redis.Client {
	t.Helper()

	url := os.Getenv(EnvURL)
	if url == "" {
		t.Skipf("%s not set, skipping Redis test", EnvURL)
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err, "parsing redis url")

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err(), "pinging redis")

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// UniquePrefix returns a key prefix that isolates one test's keys from all others.
func UniquePrefix() string {
	return "lendingtest:" + uuid.NewString()
}
