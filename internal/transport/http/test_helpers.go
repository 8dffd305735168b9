package http

import (
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reimii/meetup-server/internal/auth"
	"github.com/reimii/meetup-server/internal/config"
	"github.com/reimii/meetup-server/internal/relay"
	"github.com/reimii/meetup-server/internal/store"
	"github.com/reimii/meetup-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", func(db *sql.DB) error {
		_, err := db.Exec(sqlite.Schema)
		return err
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// testEnv bundles the pieces most handler tests need.
type testEnv struct {
	ts          *httptest.Server
	store       store.Store
	authService *auth.Service
	registry    *relay.Registry
}

// startTestServer wires a full server around the given upstream and returns it
// running on an ephemeral port.
func startTestServer(t *testing.T, upstream Upstream) *testEnv {
	t.Helper()

	testStore := createTestStore(t)
	t.Cleanup(func() { _ = testStore.Close() })

	authService := createTestAuthService(t, testStore, "test-secret")
	registry := relay.NewRegistry()
	disabledLogger := zerolog.New(nil)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}

	server := NewServer(cfg, authService, testStore, registry, upstream, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:          ts,
		store:       testStore,
		authService: authService,
		registry:    registry,
	}
}
