package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/database"
)

// ManifestRepository implements repository.ManifestRepository using PostgreSQL.
type ManifestRepository struct {
	db database.DBTX
}

// NewManifestRepository creates a new PostgreSQL-backed manifest repository.
func NewManifestRepository(db database.DBTX) *ManifestRepository {
	return &ManifestRepository{db: db}
}

const listByProductQuery = `
		SELECT id, remote_id, url, width, height, format, byte_size, role, uploaded_at, created_at
		FROM product_media
		WHERE product_id = $1
		ORDER BY position ASC`

// ListByProduct returns the stored images of a product in display order.
func (r *ManifestRepository) ListByProduct(ctx context.Context, productID string) (assets []domain.ImageAsset, err error) {
	ctx, done := database.TraceQuery(ctx, "SELECT", listByProductQuery)
	defer func() { done(err) }()

	rows, err := r.db.Query(ctx, listByProductQuery, productID)
	if err != nil {
		return nil, fmt.Errorf("list product media: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a          domain.ImageAsset
			role       string
			uploadedAt *time.Time
		)
		if err := rows.Scan(
			&a.ID,
			&a.RemoteID,
			&a.URL,
			&a.Width,
			&a.Height,
			&a.Format,
			&a.ByteSize,
			&role,
			&uploadedAt,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product media row: %w", err)
		}
		a.Role = domain.Role(role)
		a.Status = domain.StatusDone
		if uploadedAt != nil {
			a.UploadedAt = *uploadedAt
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product media rows: %w", err)
	}

	if assets == nil {
		assets = []domain.ImageAsset{}
	}
	return assets, nil
}

const (
	deleteByProductQuery = `DELETE FROM product_media WHERE product_id = $1`

	insertMediaQuery = `
		INSERT INTO product_media (id, product_id, position, remote_id, url, width, height, format, byte_size, role, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
)

// ReplaceForProduct replaces every stored image of a product inside one
// transaction.
func (r *ManifestRepository) ReplaceForProduct(ctx context.Context, productID string, assets []domain.SubmittedAsset) (err error) {
	ctx, done := database.TraceQuery(ctx, "REPLACE", insertMediaQuery)
	defer func() { done(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace product media: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, deleteByProductQuery, productID); err != nil {
		return fmt.Errorf("delete product media: %w", err)
	}

	for i, a := range assets {
		var uploadedAt *time.Time
		if !a.UploadedAt.IsZero() {
			t := a.UploadedAt
			uploadedAt = &t
		}
		if _, err = tx.Exec(ctx, insertMediaQuery,
			uuid.NewString(),
			productID,
			i,
			a.RemoteID,
			a.URL,
			a.Width,
			a.Height,
			a.Format,
			a.ByteSize,
			string(a.Role),
			uploadedAt,
		); err != nil {
			return fmt.Errorf("insert product media %d: %w", i, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace product media: %w", err)
	}
	return nil
}
