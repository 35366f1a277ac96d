package logx_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wschat/internal/pkg/logx"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestInitGlobalLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logx.InitGlobalLogger(false, &buf)

	logx.Info("hello", "peer_id", "p1")

	entry := lastLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "p1", entry["peer_id"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}

func TestInitGlobalLogger_ProductionSkipsDebug(t *testing.T) {
	var buf bytes.Buffer
	logx.InitGlobalLogger(false, &buf)

	logx.Logger().Debug().Msg("hidden")
	assert.Empty(t, buf.String())
}

func TestInitGlobalLogger_DevelopmentIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	logx.InitGlobalLogger(true, &buf)

	logx.Logger().Debug().Msg("visible")

	out := buf.String()
	assert.Contains(t, out, "visible")
	assert.NotContains(t, out, "\x1b[", "no colors outside a terminal")
}

func TestOddFieldsAreDropped(t *testing.T) {
	var buf bytes.Buffer
	logx.InitGlobalLogger(false, &buf)

	logx.Warn("odd", "dangling")

	entry := lastLine(t, &buf)
	assert.Equal(t, "odd", entry["message"])
	assert.NotContains(t, entry, "dangling")
}

func TestError_RecordsErr(t *testing.T) {
	var buf bytes.Buffer
	logx.InitGlobalLogger(false, &buf)

	logx.Error(errors.New("boom"), "failed")

	entry := lastLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logx.InitGlobalLogger(false, &buf)

	l := logx.Component("bus")
	l.Info().Msg("tagged")

	assert.Equal(t, "bus", lastLine(t, &buf)["component"])
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wschat.log")

	f, err := logx.OpenLogFile(path)
	require.NoError(t, err)
	defer f.Close()

	logx.InitGlobalLogger(false, f)
	logx.Info("to file")

	require.NoError(t, f.Sync())
	assert.FileExists(t, path)

	_, err = logx.OpenLogFile(filepath.Join(t.TempDir(), "missing", "x.log"))
	assert.Error(t, err)
}

func TestAnonymizeIP(t *testing.T) {
	tests := map[string]string{
		"192.0.2.77:5555":          "192.0.2.0",
		"192.0.2.77":               "192.0.2.0",
		"127.0.0.1:80":             "127.0.0.1",
		"[::1]:80":                 "127.0.0.1",
		"[2001:db8:1:2:3:4:5:6]:1": "2001:db8:1:2::",
		"garbage":                  "unknown_ip",
	}

	for in, want := range tests {
		assert.Equal(t, want, logx.AnonymizeIP(in), in)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logx.InitGlobalLogger(false, &buf)

	h := middleware.RequestID(logx.RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.23:4000"
	h.ServeHTTP(httptest.NewRecorder(), req)

	entry := lastLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "relay_http", entry["component"])
	assert.Equal(t, "/health", entry["request_path"])
	assert.Equal(t, "198.51.100.0", entry["remote_ip"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.NotEmpty(t, entry["request_id"])
}
