package memory

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/storage"
)

func TestUploadOpenDelete(t *testing.T) {
	ctx := context.Background()
	s := New("http://cdn.local")

	res, err := s.Upload(ctx, &storage.UploadInput{
		Key:         "products/a.png",
		ContentType: "image/png",
		Size:        3,
		Data:        bytes.NewReader([]byte("png")),
	})
	require.NoError(t, err)
	assert.Equal(t, "products/a.png", res.Key)
	assert.Equal(t, "http://cdn.local/media/products/a.png", res.URL)

	url, err := s.GetURL(ctx, "products/a.png")
	require.NoError(t, err)
	assert.Equal(t, res.URL, url)

	obj, err := s.Open(ctx, "products/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, int64(3), obj.Size)

	assert.Equal(t, []string{"products/a.png"}, s.Keys())
	require.NoError(t, s.Delete(ctx, "products/a.png"))
	assert.Empty(t, s.Keys())
}

func TestMissingKeys(t *testing.T) {
	ctx := context.Background()
	s := New("")

	assert.ErrorIs(t, s.Delete(ctx, "nope"), apperrors.ErrNotFound)
	_, err := s.GetURL(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Open(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpload_RequiresKey(t *testing.T) {
	_, err := New("").Upload(context.Background(), &storage.UploadInput{Data: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
