// Package memory provides an in-process manifest repository for local
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
)

// ManifestRepository keeps product manifests in a map.
type ManifestRepository struct {
	mu       sync.RWMutex
	products map[string][]domain.ImageAsset
}

// NewManifestRepository creates an empty repository.
func NewManifestRepository() *ManifestRepository {
	return &ManifestRepository{products: make(map[string][]domain.ImageAsset)}
}

// ListByProduct returns a copy of the stored images of a product.
func (r *ManifestRepository) ListByProduct(_ context.Context, productID string) ([]domain.ImageAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.ImageAsset{}, r.products[productID]...), nil
}

// ReplaceForProduct stores the submitted list as the product's manifest.
func (r *ManifestRepository) ReplaceForProduct(_ context.Context, productID string, assets []domain.SubmittedAsset) error {
	now := time.Now().UTC()
	stored := make([]domain.ImageAsset, len(assets))
	for i, a := range assets {
		stored[i] = domain.ImageAsset{
			ID:         uuid.NewString(),
			RemoteID:   a.RemoteID,
			URL:        a.URL,
			Width:      a.Width,
			Height:     a.Height,
			Format:     a.Format,
			ByteSize:   a.ByteSize,
			Status:     domain.StatusDone,
			Role:       a.Role,
			CreatedAt:  now,
			UploadedAt: a.UploadedAt,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(stored) == 0 {
		delete(r.products, productID)
		return nil
	}
	r.products[productID] = stored
	return nil
}
