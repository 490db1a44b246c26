package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ArtifactScope owns the intermediate files of a single pipeline run. Each
// run gets its own temp directory; Close removes it wholesale, so cleanup is
// guaranteed on success and failure paths alike and no run can touch another
// run's artifacts.
type ArtifactScope struct {
	dir    string
	count  int
	closed bool
}

// NewArtifactScope creates the scope's backing temp directory.
func NewArtifactScope() (*ArtifactScope, error) {
	dir, err := os.MkdirTemp("", "clipforge-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact workspace: %w", err)
	}
	return &ArtifactScope{dir: dir}, nil
}

// Create reserves a path for a new artifact with the given format extension.
// The file itself is written by whoever produces the artifact.
func (s *ArtifactScope) Create(format string) string {
	s.count++
	name := fmt.Sprintf("artifact_%03d_%s.%s", s.count, uuid.New().String()[:8], format)
	return filepath.Join(s.dir, name)
}

// Write creates an artifact with the given format and content in one step.
func (s *ArtifactScope) Write(format string, data []byte) (string, error) {
	path := s.Create(format)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}

// Dir returns the scope's directory, for callers that stream into it.
func (s *ArtifactScope) Dir() string {
	return s.dir
}

// Count returns how many artifact paths were handed out.
func (s *ArtifactScope) Count() int {
	return s.count
}

// Close removes every artifact in the scope. Safe to call more than once.
func (s *ArtifactScope) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return os.RemoveAll(s.dir)
}
