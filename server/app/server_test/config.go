package server_test

import (
	"testing"

	"github.com/siteguard/siteguard/server/api/rest/server"
	"github.com/siteguard/siteguard/server/app"
	"github.com/siteguard/siteguard/server/services/cache"
)

// TestJWTSecret signs bearer tokens in tests. Fixed so tests can mint their
// own tokens without going through the login endpoint.
const TestJWTSecret = "test-jwt-secret-not-for-production"

func TestConfig(t *testing.T) *app.ServerConfig {
	return &app.ServerConfig{
		// The database configuration is ignored by tests; store_test.Connect
		// picks the test database from environment variables instead.
		JWTSecret: server.JWTSecret(TestJWTSecret),
		TokenTTL:  server.DefaultTokenTTL,
		CacheConfig: app.CacheConfig{
			Enabled:    true,
			MaxEntries: cache.DefaultMaxEntries,
		},
		SchedulerConfig: app.SchedulerConfig{
			// Tests drive expiry jobs directly rather than via the scheduler.
			Enabled: false,
		},
		LogLevels: "",
	}
}
