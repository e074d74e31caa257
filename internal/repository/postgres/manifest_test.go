package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/database"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupRepo(t *testing.T) (*ManifestRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewManifestRepository(mock), mock
}

var manifestColumns = []string{
	"id", "remote_id", "url", "width", "height", "format",
	"byte_size", "role", "uploaded_at", "created_at",
}

var (
	uploadedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	createdAt  = time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
)

func sampleSubmission() []domain.SubmittedAsset {
	return []domain.SubmittedAsset{
		{RemoteID: "r-1", URL: "https://cdn.example.com/r-1.jpg", Width: 800, Height: 600, Format: "jpeg", ByteSize: 2048, UploadedAt: uploadedAt, Role: domain.RoleThumbnail},
		{RemoteID: "r-2", URL: "https://cdn.example.com/r-2.png", Width: 400, Height: 300, Format: "png", ByteSize: 1024, Role: domain.RoleCover},
	}
}

// ---------------------------------------------------------------------------
// ListByProduct
// ---------------------------------------------------------------------------

func TestManifestRepository_ListByProduct_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	rows := pgxmock.NewRows(manifestColumns).
		AddRow("m-1", "r-1", "https://cdn.example.com/r-1.jpg", 800, 600, "jpeg", int64(2048), "thumbnail", &uploadedAt, createdAt).
		AddRow("m-2", "r-2", "https://cdn.example.com/r-2.png", 400, 300, "png", int64(1024), "cover", (*time.Time)(nil), createdAt)

	mock.ExpectQuery("SELECT (.+) FROM product_media").
		WithArgs("prod-1").
		WillReturnRows(rows)

	assets, err := repo.ListByProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, "m-1", assets[0].ID)
	assert.Equal(t, "r-1", assets[0].RemoteID)
	assert.Equal(t, domain.RoleThumbnail, assets[0].Role)
	assert.Equal(t, domain.StatusDone, assets[0].Status)
	assert.Equal(t, uploadedAt, assets[0].UploadedAt)

	assert.Equal(t, domain.RoleCover, assets[1].Role)
	assert.True(t, assets[1].UploadedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepository_ListByProduct_Empty(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM product_media").
		WithArgs("prod-1").
		WillReturnRows(pgxmock.NewRows(manifestColumns))

	assets, err := repo.ListByProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.NotNil(t, assets)
	assert.Empty(t, assets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepository_ListByProduct_QueryError(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM product_media").
		WithArgs("prod-1").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.ListByProduct(context.Background(), "prod-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list product media")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// ReplaceForProduct
// ---------------------------------------------------------------------------

func TestManifestRepository_ReplaceForProduct_Success(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	assets := sampleSubmission()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM product_media").
		WithArgs("prod-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("INSERT INTO product_media").
		WithArgs(pgxmock.AnyArg(), "prod-1", 0, "r-1", assets[0].URL, 800, 600, "jpeg", int64(2048), "thumbnail", &uploadedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO product_media").
		WithArgs(pgxmock.AnyArg(), "prod-1", 1, "r-2", assets[1].URL, 400, 300, "png", int64(1024), "cover", (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := repo.ReplaceForProduct(context.Background(), "prod-1", assets)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepository_ReplaceForProduct_EmptyListClearsProduct(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM product_media").
		WithArgs("prod-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	assert.NoError(t, repo.ReplaceForProduct(context.Background(), "prod-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepository_ReplaceForProduct_InsertErrorRollsBack(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	assets := sampleSubmission()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM product_media").
		WithArgs("prod-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO product_media").
		WithArgs(pgxmock.AnyArg(), "prod-1", 0, "r-1", assets[0].URL, 800, 600, "jpeg", int64(2048), "thumbnail", &uploadedAt).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	mock.ExpectRollback()

	err := repo.ReplaceForProduct(context.Background(), "prod-1", assets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert product media 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManifestRepository_ReplaceForProduct_BeginError(t *testing.T) {
	repo, mock := setupRepo(t)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err := repo.ReplaceForProduct(context.Background(), "prod-1", sampleSubmission())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin replace product media")
	assert.NoError(t, mock.ExpectationsWereMet())
}
