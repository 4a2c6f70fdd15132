package httpserver

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestRoutes_Status(t *testing.T) {
	s := New(":0", "lanxat v1.2.3", zaptest.NewLogger(t))
	code, body := get(t, s.srv.Handler, "/status")
	require.Equal(t, http.StatusOK, code)
	require.True(t, strings.HasPrefix(body, "lanxat v1.2.3, up "), body)
}

func TestRoutes_Metrics(t *testing.T) {
	s := New(":0", "x", zaptest.NewLogger(t))
	code, body := get(t, s.srv.Handler, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "go_goroutines")
}

func TestRoutes_UnknownAndMethod(t *testing.T) {
	s := New(":0", "x", zaptest.NewLogger(t))
	code, _ := get(t, s.srv.Handler, "/nope")
	require.Equal(t, http.StatusNotFound, code)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s := New("", "lanxat test", zaptest.NewLogger(t))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()

	resp, err := http.Get("http://" + lis.Addr().String() + "/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown(t.Context()))
	require.NoError(t, <-errCh)
}
