package producer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"syphon-bridge/internal/config"
	"syphon-bridge/pkg/client"
	"syphon-bridge/pkg/discovery"
	"syphon-bridge/pkg/screen"
	"syphon-bridge/pkg/syphon"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Listen = "127.0.0.1:0"
	cfg.Source = config.SourceMemory
	return cfg
}

func TestNewSource(t *testing.T) {
	cfg := testConfig(t)

	src, err := NewSource(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &syphon.MemoryDirectory{}, src)

	cfg.Source = config.SourceDiscovery
	src, err = NewSource(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &discovery.Directory{}, src)

	cfg.Source = config.SourceScreen
	src, err = NewSource(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &screen.Directory{}, src)

	cfg.Source = "tape"
	_, err = NewSource(cfg, nil)
	require.Error(t, err)
}

func TestStartServesDirectory(t *testing.T) {
	cfg := testConfig(t)
	native := syphon.NewMemoryDirectory(syphon.Description{UUID: "a", AppName: "Resolume"})

	p, err := Start(cfg, native, nil)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	servers, err := client.FetchServers(ctx, p.URL())
	require.NoError(t, err)
	require.Len(t, servers, 1)

	base := "http://" + p.Addr
	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "syphon_directory_requests_total"))
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	native := syphon.NewMemoryDirectory()
	p, err := Start(cfg, native, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	require.Equal(t, 1, native.Disposals())
}

func TestRunTaskErrorStopsProducer(t *testing.T) {
	cfg := testConfig(t)
	p, err := Start(cfg, syphon.NewMemoryDirectory(), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = p.Run(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}
