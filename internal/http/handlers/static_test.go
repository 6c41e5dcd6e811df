package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openhood/bannerd/internal/assets"
	"github.com/openhood/bannerd/internal/storage"
)

func newStaticRouter(t *testing.T) (*chi.Mux, *storage.Sandbox) {
	t.Helper()

	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)

	router := chi.NewRouter()
	NewStaticHandler(sandbox).RegisterRoutes(router, "/uploads")
	return router, sandbox
}

func TestServeUpload(t *testing.T) {
	router, sandbox := newStaticRouter(t)
	require.NoError(t, sandbox.WriteFile("legacy-banner.png", []byte("png-bytes")))

	req := httptest.NewRequest(http.MethodGet, "/uploads/legacy-banner.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestServeUploadNotFound(t *testing.T) {
	router, _ := newStaticRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeUploadRejectsTraversal(t *testing.T) {
	router, _ := newStaticRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/uploads/..%2f..%2fetc%2fpasswd", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServePlaceholderAsset(t *testing.T) {
	router, _ := newStaticRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/assets/"+assets.PlaceholderName, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	expected, err := assets.Placeholder()
	require.NoError(t, err)
	assert.Equal(t, expected, rec.Body.Bytes())
}

func TestServeAssetNotFound(t *testing.T) {
	router, _ := newStaticRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/assets/nope.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
