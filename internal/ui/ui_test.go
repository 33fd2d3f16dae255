package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAssetHandler(t *testing.T) {
	handler := AssetHandler()

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/", http.StatusOK, "text/html; charset=utf-8"},
		{"/assets/app.js", http.StatusOK, "application/javascript; charset=utf-8"},
		{"/app.css", http.StatusOK, "text/css; charset=utf-8"},
		{"/missing.txt", http.StatusNotFound, ""},
		{"/../ui.go", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			w := httptest.NewRecorder()

			handler(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			if tt.contentType != "" && w.Header().Get("Content-Type") != tt.contentType {
				t.Errorf("Expected content type %s, got %s", tt.contentType, w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestAssetHandler_IndexReferencesScript(t *testing.T) {
	w := httptest.NewRecorder()
	AssetHandler()(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(w.Body.String(), "/assets/app.js") {
		t.Error("Expected index.html to load app.js")
	}
}
