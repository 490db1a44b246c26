package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/media"
)

func TestSuppress_StoresCleanedAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/isolate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "noisy-audio" {
			t.Errorf("unexpected upload body %q", body)
		}
		w.Write([]byte("clean-audio"))
	}))
	defer srv.Close()

	scope, err := media.NewArtifactScope()
	if err != nil {
		t.Fatalf("create scope: %v", err)
	}
	defer scope.Close()

	inPath := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(inPath, []byte("noisy-audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	c := NewSuppressClient(&config.SuppressConfig{ServiceURL: srv.URL, Timeout: 5})

	var progress []int
	outPath, err := c.Suppress(context.Background(), inPath, scope, func(v int) {
		progress = append(progress, v)
	})
	if err != nil {
		t.Fatalf("suppress: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "clean-audio" {
		t.Errorf("unexpected cleaned audio %q", data)
	}
	if len(progress) == 0 || progress[len(progress)-1] != 100 {
		t.Errorf("expected sub-progress ending at 100, got %v", progress)
	}
}

func TestSuppress_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	scope, err := media.NewArtifactScope()
	if err != nil {
		t.Fatalf("create scope: %v", err)
	}
	defer scope.Close()

	inPath := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(inPath, []byte("noisy-audio"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	c := NewSuppressClient(&config.SuppressConfig{ServiceURL: srv.URL, Timeout: 5})
	if _, err := c.Suppress(context.Background(), inPath, scope, nil); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestHealthCheck(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	c := NewSuppressClient(&config.SuppressConfig{ServiceURL: srv.URL, Timeout: 5})
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy service, got %v", err)
	}

	healthy = false
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("expected error from unhealthy service")
	}
}

func TestSuppressClient_IsConfigured(t *testing.T) {
	if NewSuppressClient(&config.SuppressConfig{}).IsConfigured() {
		t.Error("client without url must not report configured")
	}
	if !NewSuppressClient(&config.SuppressConfig{ServiceURL: "http://localhost:9000"}).IsConfigured() {
		t.Error("client with url must report configured")
	}
}
