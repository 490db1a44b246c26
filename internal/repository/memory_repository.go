package repository

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
)

// MemoryAssetRepository is the in-process fallback used in tests and local
// development without object storage.
type MemoryAssetRepository struct {
	mu     sync.RWMutex
	assets map[string]*model.MediaAsset
	blobs  map[string][]byte
}

// NewMemoryAssetRepository creates an empty in-memory asset repository.
func NewMemoryAssetRepository() *MemoryAssetRepository {
	return &MemoryAssetRepository{
		assets: make(map[string]*model.MediaAsset),
		blobs:  make(map[string][]byte),
	}
}

// Seed registers an existing asset and its bytes, for tests.
func (r *MemoryAssetRepository) Seed(asset *model.MediaAsset, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.AssetID] = asset
	r.blobs[asset.StoragePath] = data
}

func (r *MemoryAssetRepository) GetAsset(ctx context.Context, assetID, ownerID string) (*model.MediaAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	asset, ok := r.assets[assetID]
	if !ok || asset.OwnerID != ownerID {
		return nil, ErrAssetNotFound
	}
	copied := *asset
	return &copied, nil
}

func (r *MemoryAssetRepository) CreateAsset(ctx context.Context, ownerID, projectID string, req *model.CreateAssetRequest, data []byte) (*model.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	assetID := uuid.New().String()
	key := fmt.Sprintf("assets/%s/%s/%s", ownerID, assetID, req.OriginalName)
	asset := &model.MediaAsset{
		AssetID:      assetID,
		OwnerID:      ownerID,
		ProjectID:    projectID,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		StoragePath:  key,
		FileSize:     int64(len(data)),
		Duration:     req.Duration,
		Dimensions:   req.Dimensions,
		HasAudio:     req.HasAudio,
	}
	r.assets[assetID] = asset
	r.blobs[key] = data

	copied := *asset
	return &copied, nil
}

func (r *MemoryAssetRepository) Fetch(ctx context.Context, storagePath string, scope *media.ArtifactScope) (string, error) {
	r.mu.RLock()
	data, ok := r.blobs[storagePath]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no blob at %s", storagePath)
	}

	localPath := scope.Create(extensionOf(storagePath))
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return "", err
	}
	return localPath, nil
}

// AssetCount returns how many assets exist, for tests asserting that no
// partial output asset was created.
func (r *MemoryAssetRepository) AssetCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}
