package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novelgrab/novelgrab/internal/novel"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.html", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>hello chapter</body></html>"))
	})
	mux.HandleFunc("/forbidden.html", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/missing.html", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/flaky.html", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/slow.html", func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		_, _ = w.Write([]byte("late"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second})

	page, err := f.Fetch(context.Background(), srv.URL+"/ok.html")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "hello chapter")
	require.Equal(t, srv.URL+"/ok.html", page.URL)
}

func TestFetchClassifiesFailures(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{Timeout: 5 * time.Second})

	tests := []struct {
		path string
		want novel.FailureClass
	}{
		{"/forbidden.html", novel.ClassPermanentAccess},
		{"/missing.html", novel.ClassPermanentParse},
		{"/flaky.html", novel.ClassTransient},
	}
	for _, tc := range tests {
		_, err := f.Fetch(context.Background(), srv.URL+tc.path)
		require.Error(t, err, "path %s", tc.path)
		require.Equal(t, tc.want, novel.ClassOf(err), "path %s", tc.path)
	}
}

func TestFetchContextCancel(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	f := New(Config{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, srv.URL+"/slow.html")
	require.Error(t, err)
}
