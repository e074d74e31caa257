package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
)

func TestManifestRepository_ReplaceAndList(t *testing.T) {
	repo := NewManifestRepository()
	ctx := context.Background()

	empty, err := repo.ListByProduct(ctx, "prod-1")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.ReplaceForProduct(ctx, "prod-1", []domain.SubmittedAsset{
		{RemoteID: "r-1", URL: "u1", Role: domain.RoleThumbnail},
		{RemoteID: "r-2", URL: "u2", Role: domain.RoleCover},
	}))

	assets, err := repo.ListByProduct(ctx, "prod-1")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "r-1", assets[0].RemoteID)
	assert.Equal(t, domain.RoleCover, assets[1].Role)
	assert.Equal(t, domain.StatusDone, assets[1].Status)
	assert.NotEmpty(t, assets[0].ID)

	// Callers get a copy.
	assets[0].RemoteID = "mutated"
	again, _ := repo.ListByProduct(ctx, "prod-1")
	assert.Equal(t, "r-1", again[0].RemoteID)

	require.NoError(t, repo.ReplaceForProduct(ctx, "prod-1", nil))
	cleared, _ := repo.ListByProduct(ctx, "prod-1")
	assert.Empty(t, cleared)
}
