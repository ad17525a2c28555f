package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vzahanych/barcode-scanner/internal/config"
	"github.com/vzahanych/barcode-scanner/internal/logger"
	"github.com/vzahanych/barcode-scanner/internal/service"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNewServer(t *testing.T) {
	server := NewServer(&config.WebConfig{Enabled: true}, logger.NewNopLogger())
	require.NotNil(t, server)
	assert.Equal(t, "web-server", server.Name())
}

func TestServer_StartDisabled(t *testing.T) {
	server := NewServer(&config.WebConfig{Enabled: false}, logger.NewNopLogger())

	require.NoError(t, server.Start(context.Background()))
	assert.Nil(t, server.httpServer)
	require.NoError(t, server.Stop(context.Background()))
}

func TestServer_StartStop(t *testing.T) {
	port := freePort(t)
	server := NewServer(&config.WebConfig{Enabled: true, Host: "127.0.0.1", Port: port}, logger.NewNopLogger())

	require.NoError(t, server.Start(context.Background()))
	assert.Equal(t, service.StatusRunning, server.GetStatus().GetStatus())

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health/live", port))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	assert.Equal(t, service.StatusStopped, server.GetStatus().GetStatus())
}

func TestServer_HandlerRoutesOnce(t *testing.T) {
	server := NewServer(&config.WebConfig{}, logger.NewNopLogger())

	assert.NotPanics(t, func() {
		server.Handler()
		server.Handler()
	})
}
