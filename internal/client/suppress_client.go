package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/clipforge/api/internal/config"
	"github.com/clipforge/api/internal/media"
)

// SuppressClient implements media.NoiseSuppressor against the noise
// suppression microservice. The service accepts raw audio and returns the
// cleaned audio stream.
type SuppressClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewSuppressClient creates a new noise suppression client
func NewSuppressClient(cfg *config.SuppressConfig) *SuppressClient {
	return &SuppressClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Suppress uploads the audio artifact to the service and stores the cleaned
// audio as a new artifact in the scope. The service call is a single
// long-running request, so sub-progress brackets it rather than tracking it.
func (c *SuppressClient) Suppress(ctx context.Context, audioPath string, scope *media.ArtifactScope, onProgress media.ProgressFunc) (string, error) {
	in, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to open audio: %w", err)
	}
	defer in.Close()

	if onProgress != nil {
		onProgress(10)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/isolate", in)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("suppression request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("suppression service error (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	if onProgress != nil {
		onProgress(80)
	}

	outPath := scope.Create("wav")
	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create output artifact: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("failed to store cleaned audio: %w", err)
	}

	if onProgress != nil {
		onProgress(100)
	}
	return outPath, nil
}

// HealthCheck checks if the suppression service is available
func (c *SuppressClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("suppression service unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *SuppressClient) IsConfigured() bool {
	return c.baseURL != ""
}
