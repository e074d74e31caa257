package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Role Tests
// ============================================================================

func TestPositionalRole(t *testing.T) {
	assert.Equal(t, RoleThumbnail, PositionalRole(0))
	assert.Equal(t, RoleThumbnail, PositionalRole(1))
	assert.Equal(t, RoleCover, PositionalRole(2))
	assert.Equal(t, RoleGallery, PositionalRole(3))
	assert.Equal(t, RoleGallery, PositionalRole(7))
}

func TestRoleCapacity(t *testing.T) {
	assert.Equal(t, 1, RoleCapacity(RoleCover))
	assert.Equal(t, 2, RoleCapacity(RoleThumbnail))
	assert.Negative(t, RoleCapacity(RoleGallery))
}

func TestIsValidRole(t *testing.T) {
	assert.True(t, IsValidRole(RoleCover))
	assert.True(t, IsValidRole(RoleGallery))
	assert.False(t, IsValidRole(Role("hero")))
	assert.False(t, IsValidRole(""))
}

// ============================================================================
// ImageAsset Tests
// ============================================================================

func TestSourceHandle_PrefersLocalHandle(t *testing.T) {
	a := &ImageAsset{LocalHandle: "local:abc", URL: "https://cdn/x.jpg"}
	assert.Equal(t, "local:abc", a.SourceHandle())
	assert.True(t, a.IsLocal())

	a.LocalHandle = ""
	assert.Equal(t, "https://cdn/x.jpg", a.SourceHandle())
	assert.False(t, a.IsLocal())
}

func TestApplyMetadata_KeepsKnownValuesWhenStoreOmitsThem(t *testing.T) {
	uploaded := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	a := &ImageAsset{Width: 640, Height: 480, Format: "jpeg", ByteSize: 100}
	a.ApplyMetadata(&AssetMetadata{RemoteID: "r1", URL: "https://cdn/r1", ByteSize: 120, UploadedAt: uploaded})

	assert.Equal(t, "r1", a.RemoteID)
	assert.Equal(t, "https://cdn/r1", a.URL)
	assert.Equal(t, 640, a.Width)
	assert.Equal(t, 480, a.Height)
	assert.Equal(t, "jpeg", a.Format)
	assert.Equal(t, int64(120), a.ByteSize)
	assert.Equal(t, uploaded, a.UploadedAt)
}

func TestImageAssetJSON_UploadedAtAlwaysPresent(t *testing.T) {
	uploading, err := json.Marshal(ImageAsset{ID: "a", Status: StatusUploading})
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(uploading, &fields))
	assert.Contains(t, fields, "uploaded_at")

	uploaded := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	done, err := json.Marshal(ImageAsset{ID: "a", Status: StatusDone, UploadedAt: uploaded})
	require.NoError(t, err)
	var back ImageAsset
	require.NoError(t, json.Unmarshal(done, &back))
	assert.True(t, uploaded.Equal(back.UploadedAt))
}

func TestRawFileSize(t *testing.T) {
	f := RawFile{Name: "a.png", Data: make([]byte, 42)}
	assert.Equal(t, int64(42), f.Size())
}

// ============================================================================
// Aspect Ratio Tests
// ============================================================================

func TestParseAspectRatio(t *testing.T) {
	ar, err := ParseAspectRatio("4:3")
	require.NoError(t, err)
	assert.Equal(t, AspectRatio{Width: 4, Height: 3}, ar)
	assert.InDelta(t, 4.0/3.0, ar.Value(), 1e-9)
	assert.Equal(t, "4:3", ar.String())

	ar, err = ParseAspectRatio(" 1 : 1 ")
	require.NoError(t, err)
	assert.Equal(t, 1.0, ar.Value())
}

func TestParseAspectRatio_Invalid(t *testing.T) {
	for _, s := range []string{"", "4", "4:0", "0:3", "a:b", "-1:2"} {
		_, err := ParseAspectRatio(s)
		assert.Error(t, err, s)
	}
}

// ============================================================================
// Limits Tests
// ============================================================================

func TestDefaultLimits(t *testing.T) {
	l := DefaultLimits()
	assert.Equal(t, 8, l.MaxAssets)
	assert.Equal(t, int64(5*1024*1024), l.MaxBytesPerAsset)
	assert.ElementsMatch(t, []string{"image/jpeg", "image/png", "image/webp"}, l.AllowedMimeTypes)
	assert.Equal(t, AspectRatio{Width: 4, Height: 3}, l.AspectRatio)
	assert.Equal(t, RolePolicyPositional, l.RolePolicy)
}

func TestLimitsWithDefaults_FillsZeroFields(t *testing.T) {
	l := Limits{MaxAssets: 3}.WithDefaults()
	assert.Equal(t, 3, l.MaxAssets)
	assert.Equal(t, DefaultMaxBytesPerAsset, l.MaxBytesPerAsset)
	assert.Equal(t, DefaultUploadConcurrency, l.UploadConcurrency)
	assert.Equal(t, DefaultUploadTimeout, l.UploadTimeout)
}

func TestIsAllowedContentType(t *testing.T) {
	l := DefaultLimits()
	assert.True(t, l.IsAllowedContentType("image/jpeg"))
	assert.True(t, l.IsAllowedContentType("image/webp"))
	assert.False(t, l.IsAllowedContentType("image/gif"))
	assert.False(t, l.IsAllowedContentType("IMAGE/JPEG"))
	assert.False(t, l.IsAllowedContentType(""))
}
