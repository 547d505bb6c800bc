package httpserver

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Clark-Hu/ratings-api/internal/config"
)

func newPagesServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	staticDir := filepath.Join(root, "static")
	templateDir := filepath.Join(root, "templates")
	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, "js"), 0o755))
	require.NoError(t, os.MkdirAll(templateDir, 0o755))

	files := map[string]string{
		filepath.Join(staticDir, "js", "app.js"):  "console.log('app');",
		filepath.Join(staticDir, "manifest.json"): `{"name":"Ratings"}`,
		filepath.Join(root, "sw.js"):              "self.addEventListener('install', () => {});",
		filepath.Join(templateDir, "index.html"):  "<h1>Rate us</h1>",
		filepath.Join(templateDir, "sync.html"):   "<h1>Sync</h1>",
		filepath.Join(templateDir, "broken.html"): "{{ .Missing",
		filepath.Join(templateDir, "config.html"): "<h1>Config</h1>",
	}
	for path, content := range files {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	cfg := config.Config{
		CORSAllowedOrigins: []string{"*"},
		StaticDir:          staticDir,
		TemplateDir:        templateDir,
		ServiceWorkerPath:  filepath.Join(root, "sw.js"),
	}
	return New(cfg, nil, &fakeRatings{}, zap.NewNop())
}

func TestPages(t *testing.T) {
	srv := newPagesServer(t)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "<h1>Rate us</h1>"},
		{"/sync", http.StatusOK, "<h1>Sync</h1>"},
		{"/config", http.StatusOK, "<h1>Config</h1>"},
		{"/static/js/app.js", http.StatusOK, "console.log('app');"},
		{"/manifest.json", http.StatusOK, `{"name":"Ratings"}`},
		{"/sw.js", http.StatusOK, "self.addEventListener('install', () => {});"},
		{"/missing", http.StatusNotFound, ""},
		{"/static/nope.css", http.StatusNotFound, ""},
		{"/static/js/", http.StatusNotFound, ""},
		{"/static/", http.StatusNotFound, ""},
		{"/index.html", http.StatusNotFound, ""},
		{"/broken", http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRenderPageRejectsTraversal(t *testing.T) {
	srv := newPagesServer(t)
	for _, name := range []string{"../secret", "a/b", "", "index.html"} {
		rec := httptest.NewRecorder()
		srv.renderPage(rec, httptest.NewRequest(http.MethodGet, "/", nil), name)
		assert.Equal(t, http.StatusNotFound, rec.Code, "page %q", name)
	}
}

func TestShippedFrontendPages(t *testing.T) {
	root := filepath.Join("..", "..", "frontend")
	cfg := config.Config{
		CORSAllowedOrigins: []string{"*"},
		StaticDir:          filepath.Join(root, "static"),
		TemplateDir:        filepath.Join(root, "templates"),
		ServiceWorkerPath:  filepath.Join(root, "sw.js"),
	}
	srv := New(cfg, nil, &fakeRatings{}, zap.NewNop())

	for _, path := range []string{"/", "/sync", "/config", "/manifest.json", "/sw.js"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, "GET %s", path)
		assert.NotEmpty(t, rec.Body.String(), "GET %s", path)
	}
}
