package repository

import (
	"context"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
)

// ManifestRepository persists the ordered image list of each product.
type ManifestRepository interface {
	// ListByProduct returns the stored images of a product in display order.
	// A product without images yields an empty slice.
	ListByProduct(ctx context.Context, productID string) ([]domain.ImageAsset, error)

	// ReplaceForProduct atomically replaces the stored images of a product
	// with the submitted list.
	ReplaceForProduct(ctx context.Context, productID string, assets []domain.SubmittedAsset) error
}
