package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netwatch/internal/config"
	"netwatch/internal/models"
)

const netDev = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
  eth0: 5000 50 0 0 0 0 0 0 8000 80 0 0 0 0 0 0
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "net"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "net", "dev"), []byte(netDev), 0o644))
	return config.Config{
		Addr:             "127.0.0.1:0",
		MonitorInterval:  20 * time.Millisecond,
		Autostart:        true,
		HistoryRetention: time.Hour,
		EvictInterval:    time.Minute,
		ProcPath:         root,
		SkipLoopback:     true,
		LogLevel:         "info",
		LogFormat:        "json",
		BusBuffer:        16,
		NotifyAttempts:   1,
	}
}

func TestRunServesAndShutsDown(t *testing.T) {
	a, err := New(testConfig(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.serve(ctx, ln) }()

	var st models.MonitorStatus
	require.Eventually(t, func() bool {
		res, err := http.Get(base + "/api/monitor/status")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		return json.NewDecoder(res.Body).Decode(&st) == nil && st.Status == models.MonitorStarted
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int64(20), st.Interval)

	require.Eventually(t, func() bool {
		res, err := http.Get(base + "/api/network/stats")
		if err != nil {
			return false
		}
		defer res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	res, err := http.Get(base + "/readyz")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("app did not shut down")
	}
	assert.Equal(t, models.MonitorStopped, a.monitor.Status().Status)
}

func TestNewLogsDisabledTelegram(t *testing.T) {
	newLogged := func(cfg config.Config) string {
		var buf bytes.Buffer
		a, err := New(cfg, slog.New(slog.NewTextHandler(&buf, nil)))
		require.NoError(t, err)
		t.Cleanup(func() {
			a.bus.Close()
			_ = a.sqldb.Close()
		})
		return buf.String()
	}

	assert.Contains(t, newLogged(testConfig(t)), "telegram notifications disabled")

	cfg := testConfig(t)
	cfg.TelegramBotToken, cfg.TelegramChatID = "token", "42"
	assert.NotContains(t, newLogged(cfg), "telegram notifications disabled")
}

func TestNewFailsOnMissingProcfs(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProcPath = filepath.Join(t.TempDir(), "missing")
	_, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
