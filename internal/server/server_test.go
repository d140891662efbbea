package server

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecopier/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Server:   config.ServerConfig{Port: 3000, RequestTimeoutSeconds: 5, ShutdownTimeoutSeconds: 2},
		HTTP:     config.HTTPConfig{TimeoutSeconds: 5},
		Archive:  config.ArchiveConfig{Concurrency: 1},
		Storage:  config.StorageConfig{Provider: config.StorageMemory, Prefix: "archives"},
		Headless: config.HeadlessConfig{Enabled: false},
	}
}

// Not parallel: Build installs the global tracer provider.
func TestServeUntilCanceled(t *testing.T) {
	srv, err := Build(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestBuildRejectsBadStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Provider = "s3"
	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "storage init failed")
}
