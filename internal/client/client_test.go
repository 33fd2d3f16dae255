package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Do(t *testing.T) {
	var gotAuth, gotType string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret")

	var out map[string]string
	err := c.Put(context.Background(), "/api/monitors/x/nickname", map[string]string{"nickname": "Left"}, &out)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotType)
	}
	if gotBody["nickname"] != "Left" {
		t.Errorf("Expected nickname in body, got %v", gotBody)
	}
	if out["path"] != "/api/monitors/x/nickname" {
		t.Errorf("Expected path echoed, got %v", out)
	}
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "profile not found"})
	}))
	defer srv.Close()

	err := New(srv.URL, "").Get(context.Background(), "/api/profiles/x", nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", apiErr.Status)
	}
	if apiErr.Message != "profile not found" {
		t.Errorf("Expected error message, got %q", apiErr.Message)
	}
}

func TestClient_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var out map[string]string
	if err := New(srv.URL, "").Delete(context.Background(), "/api/schedules/1", &out); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if out != nil {
		t.Errorf("Expected no body decoded, got %v", out)
	}
}
