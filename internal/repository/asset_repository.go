package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clipforge/api/internal/client"
	"github.com/clipforge/api/internal/media"
	"github.com/clipforge/api/internal/model"
)

// ErrAssetNotFound is returned for unknown assets and assets owned by a
// different user.
var ErrAssetNotFound = errors.New("asset not found")

// AssetRepository is the narrow interface through which the job core sees
// media assets. Upload, metadata validation and project bookkeeping live in
// the (external) media service; the core only resolves metadata, fetches
// bytes, and stores pipeline results as new assets.
type AssetRepository interface {
	GetAsset(ctx context.Context, assetID, ownerID string) (*model.MediaAsset, error)
	CreateAsset(ctx context.Context, ownerID, projectID string, req *model.CreateAssetRequest, data []byte) (*model.MediaAsset, error)

	// Fetch implements media.SourceFetcher.
	Fetch(ctx context.Context, storagePath string, scope *media.ArtifactScope) (string, error)
}

// StorageAssetRepository keeps asset metadata as JSON in Redis and asset
// bytes in object storage.
type StorageAssetRepository struct {
	redis   *redis.Client
	storage client.StorageClient
}

// NewStorageAssetRepository creates the production asset repository.
func NewStorageAssetRepository(redisClient *redis.Client, storage client.StorageClient) *StorageAssetRepository {
	return &StorageAssetRepository{redis: redisClient, storage: storage}
}

func (r *StorageAssetRepository) GetAsset(ctx context.Context, assetID, ownerID string) (*model.MediaAsset, error) {
	data, err := r.redis.Get(ctx, assetKey(assetID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}

	var asset model.MediaAsset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}
	if asset.OwnerID != ownerID {
		return nil, ErrAssetNotFound
	}
	return &asset, nil
}

func (r *StorageAssetRepository) CreateAsset(ctx context.Context, ownerID, projectID string, req *model.CreateAssetRequest, data []byte) (*model.MediaAsset, error) {
	assetID := uuid.New().String()
	key := fmt.Sprintf("assets/%s/%s/%s", ownerID, assetID, req.OriginalName)

	url, err := r.storage.Upload(ctx, key, bytes.NewReader(data), req.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store asset bytes: %w", err)
	}

	asset := &model.MediaAsset{
		AssetID:      assetID,
		OwnerID:      ownerID,
		ProjectID:    projectID,
		OriginalName: req.OriginalName,
		MimeType:     req.MimeType,
		StoragePath:  key,
		URL:          url,
		FileSize:     int64(len(data)),
		Duration:     req.Duration,
		Dimensions:   req.Dimensions,
		HasAudio:     req.HasAudio,
	}

	meta, err := json.Marshal(asset)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal asset: %w", err)
	}
	if err := r.redis.Set(ctx, assetKey(assetID), meta, 0).Err(); err != nil {
		// An asset without metadata is unreachable; remove the orphaned bytes
		if derr := r.storage.Delete(ctx, key); derr != nil {
			log.Printf("Failed to remove orphaned asset bytes at %s: %v", key, derr)
		}
		return nil, fmt.Errorf("failed to save asset metadata: %w", err)
	}
	return asset, nil
}

func (r *StorageAssetRepository) Fetch(ctx context.Context, storagePath string, scope *media.ArtifactScope) (string, error) {
	body, err := r.storage.Download(ctx, storagePath)
	if err != nil {
		return "", err
	}
	defer body.Close()

	localPath := scope.Create(extensionOf(storagePath))
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		return "", fmt.Errorf("failed to download source: %w", err)
	}
	return localPath, nil
}

func extensionOf(storagePath string) string {
	ext := strings.TrimPrefix(path.Ext(storagePath), ".")
	if ext == "" {
		return "bin"
	}
	return ext
}

func assetKey(assetID string) string {
	return fmt.Sprintf("asset:%s", assetID)
}
