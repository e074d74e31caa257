package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/ledger"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockClient uploads into a counter and records deletes through mock.Mock.
type mockClient struct {
	mock.Mock
	uploads atomic.Int32
	source  []byte
}

func (m *mockClient) UploadAsset(_ context.Context, data []byte, _ string) (*domain.AssetMetadata, error) {
	n := m.uploads.Add(1)
	id := fmt.Sprintf("up-%d", n)
	return &domain.AssetMetadata{RemoteID: id, URL: "https://cdn.test/" + id, ByteSize: int64(len(data)), UploadedAt: time.Now().UTC()}, nil
}

func (m *mockClient) DeleteAsset(ctx context.Context, remoteID string) error {
	args := m.Called(ctx, remoteID)
	return args.Error(0)
}

func (m *mockClient) FetchAsset(_ context.Context, _ string) ([]byte, string, error) {
	return m.source, "image/png", nil
}

func pngBytes(t *testing.T, w, h int, shade uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, client *mockClient) *Pipeline {
	t.Helper()
	p := New("prod-1", client, Config{}, newTestLogger())
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func stored(ids ...string) []domain.ImageAsset {
	out := make([]domain.ImageAsset, len(ids))
	for i, id := range ids {
		out[i] = domain.ImageAsset{
			ID:       "asset-" + id,
			RemoteID: id,
			URL:      "https://cdn.test/" + id,
			Width:    40,
			Height:   30,
			Format:   "png",
		}
	}
	return out
}

func TestPipeline_LoadAddRemoveExportPurge(t *testing.T) {
	client := &mockClient{}
	client.On("DeleteAsset", mock.Anything, "stored-1").Return(nil).Once()
	p := newTestPipeline(t, client)
	ctx := context.Background()

	require.NoError(t, p.Load(ctx, stored("stored-1")))
	report, err := p.AddFiles(ctx, []domain.RawFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 20, 20, 1)},
		{Name: "b.png", ContentType: "image/png", Data: pngBytes(t, 20, 20, 2)},
	})
	require.NoError(t, err)
	require.Len(t, report.Admitted, 2)
	require.NoError(t, p.WaitIdle(ctx))

	require.NoError(t, p.Remove(ctx, "asset-stored-1"))

	sub, err := p.Export(ctx)
	require.NoError(t, err)
	require.Len(t, sub.Assets, 2)
	assert.Equal(t, domain.RoleThumbnail, sub.Assets[0].Role)
	assert.Equal(t, domain.RoleThumbnail, sub.Assets[1].Role)
	assert.Equal(t, []string{"stored-1"}, sub.DeletedRemoteIDs)

	purge, err := p.PurgeDeleted(ctx, sub.DeletedRemoteIDs)
	require.NoError(t, err)
	assert.Equal(t, []string{"stored-1"}, purge.Deleted)
	assert.Empty(t, purge.Failed)

	sub, err = p.Export(ctx)
	require.NoError(t, err)
	assert.Empty(t, sub.DeletedRemoteIDs)
	client.AssertExpectations(t)

	require.NoError(t, p.Close(ctx))
	stats := p.Stats()
	assert.Equal(t, 0, stats.Live)
	assert.Equal(t, stats.Created, stats.Released)
}

func TestPurgeDeleted_FailuresAreNonFatal(t *testing.T) {
	client := &mockClient{}
	client.On("DeleteAsset", mock.Anything, "r1").Return(nil)
	client.On("DeleteAsset", mock.Anything, "r2").Return(apperrors.Delete(errors.New("store down")))
	p := newTestPipeline(t, client)
	ctx := context.Background()

	require.NoError(t, p.Load(ctx, stored("r1", "r2")))
	require.NoError(t, p.Remove(ctx, "asset-r1"))
	require.NoError(t, p.Remove(ctx, "asset-r2"))

	sub, err := p.Export(ctx)
	require.NoError(t, err)
	purge, err := p.PurgeDeleted(ctx, sub.DeletedRemoteIDs)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, purge.Deleted)
	assert.Equal(t, []string{"r2"}, purge.Failed)

	sub, err = p.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, sub.DeletedRemoteIDs, "failed ids stay for the next purge")
}

func TestPurgeDeleted_NothingToDo(t *testing.T) {
	client := &mockClient{}
	p := newTestPipeline(t, client)

	purge, err := p.PurgeDeleted(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, purge.Deleted)
	client.AssertNotCalled(t, "DeleteAsset", mock.Anything, mock.Anything)
}

func TestExport_SealsUntilUnseal(t *testing.T) {
	p := newTestPipeline(t, &mockClient{})
	ctx := context.Background()
	require.NoError(t, p.Load(ctx, stored("a", "b")))

	sub, err := p.Export(ctx)
	require.NoError(t, err)
	require.Len(t, sub.Assets, 2)

	assert.ErrorIs(t, p.Remove(ctx, "asset-a"), apperrors.ErrBusy)
	assert.ErrorIs(t, p.Reorder(ctx, "asset-b", 0), apperrors.ErrBusy)
	assert.ErrorIs(t, p.SetRole(ctx, "asset-a", domain.RoleCover), apperrors.ErrBusy)
	_, err = p.AddFiles(ctx, []domain.RawFile{{Name: "c.png", Data: pngBytes(t, 8, 8, 3)}})
	assert.ErrorIs(t, err, apperrors.ErrBusy)
	_, err = p.Editor().Open(ctx, "asset-a")
	assert.ErrorIs(t, err, apperrors.ErrBusy)

	again, err := p.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, sub, again)

	require.NoError(t, p.Unseal(ctx))
	require.NoError(t, p.Remove(ctx, "asset-a"))
}

func TestPurgeDeleted_OnlyPurgesGivenIDs(t *testing.T) {
	client := &mockClient{}
	client.On("DeleteAsset", mock.Anything, "r1").Return(nil).Once()
	p := newTestPipeline(t, client)
	ctx := context.Background()
	require.NoError(t, p.Load(ctx, stored("r1", "r2")))
	require.NoError(t, p.Remove(ctx, "asset-r1"))
	require.NoError(t, p.Remove(ctx, "asset-r2"))

	purge, err := p.PurgeDeleted(ctx, []string{"r1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, purge.Deleted)
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "DeleteAsset", mock.Anything, "r2")

	sub, err := p.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, sub.DeletedRemoteIDs)
}

func TestDiscard_PurgesOnlySessionUploads(t *testing.T) {
	client := &mockClient{source: pngBytes(t, 40, 30, 4)}
	client.On("DeleteAsset", mock.Anything, "up-1").Return(nil).Once()
	client.On("DeleteAsset", mock.Anything, "up-2").Return(nil).Once()
	client.On("DeleteAsset", mock.Anything, "up-3").Return(nil).Once()
	p := newTestPipeline(t, client)
	ctx := context.Background()
	require.NoError(t, p.Load(ctx, stored("keep", "gone", "edited")))

	// One upload stays in the list, the other is removed again.
	_, err := p.AddFiles(ctx, []domain.RawFile{
		{Name: "a.png", ContentType: "image/png", Data: pngBytes(t, 20, 20, 1)},
		{Name: "b.png", ContentType: "image/png", Data: pngBytes(t, 20, 20, 2)},
	})
	require.NoError(t, err)
	require.NoError(t, p.WaitIdle(ctx))
	assets, err := p.Assets(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Remove(ctx, assets[4].ID))
	require.NoError(t, p.Remove(ctx, "asset-gone"))

	// The edit replaces a stored object with up-3.
	_, err = p.Editor().Open(ctx, "asset-edited")
	require.NoError(t, err)
	require.NoError(t, p.Editor().Commit(ctx))

	purge, err := p.Discard(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"up-1", "up-2", "up-3"}, purge.Deleted)
	assert.Empty(t, purge.Failed)
	client.AssertExpectations(t)
	for _, id := range []string{"keep", "gone", "edited"} {
		client.AssertNotCalled(t, "DeleteAsset", mock.Anything, id)
	}

	_, err = p.Assets(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
	assert.Equal(t, 0, p.Stats().Live)
}

func TestOpenPreview_PinOutlivesRelease(t *testing.T) {
	client := &mockClient{source: pngBytes(t, 80, 60, 9)}
	p := newTestPipeline(t, client)
	ctx := context.Background()
	require.NoError(t, p.Load(ctx, stored("r1")))

	_, err := p.Editor().Open(ctx, "asset-r1")
	require.NoError(t, err)
	view, err := p.Editor().Preview(ctx)
	require.NoError(t, err)

	preview, err := p.OpenPreview(view.PreviewHandle)
	require.NoError(t, err)
	assert.Equal(t, "image/png", preview.ContentType)
	assert.NotEmpty(t, preview.Data)

	// Cancelling releases the preview, but the open reader keeps it alive.
	require.NoError(t, p.Editor().Cancel(ctx))
	assert.Equal(t, 1, p.Stats().Live)

	require.NoError(t, preview.Close())
	require.NoError(t, preview.Close())
	assert.Equal(t, 0, p.Stats().Live)

	_, err = p.OpenPreview(view.PreviewHandle)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = p.OpenPreview("local:unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDrag_ReordersThroughList(t *testing.T) {
	p := newTestPipeline(t, &mockClient{})
	ctx := context.Background()
	require.NoError(t, p.Load(ctx, stored("a", "b", "c")))

	require.NoError(t, p.Drag().Start("asset-c"))
	require.NoError(t, p.Drag().Over(0))
	require.NoError(t, p.Drag().Drop(ctx))

	assets, err := p.Assets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 3)
	assert.Equal(t, "asset-c", assets[0].ID)
	assert.Equal(t, domain.RoleCover, assets[2].Role)
	assert.Equal(t, "asset-b", assets[2].ID)
}

func TestDrag_HoverPastEndDropsLast(t *testing.T) {
	p := newTestPipeline(t, &mockClient{})
	ctx := context.Background()
	require.NoError(t, p.Load(ctx, stored("a", "b", "c")))

	require.NoError(t, p.Drag().Start("asset-a"))
	require.NoError(t, p.Drag().Over(7))
	preview, err := p.Drag().Preview()
	require.NoError(t, err)
	require.NoError(t, p.Drag().Drop(ctx))

	assets, err := p.Assets(ctx)
	require.NoError(t, err)
	got := make([]string, len(assets))
	for i, a := range assets {
		got[i] = a.ID
	}
	assert.Equal(t, []string{"asset-b", "asset-c", "asset-a"}, got)
	assert.Equal(t, preview, got, "drop lands where the preview showed")
}

func TestClose_IsIdempotentAndEndsEditing(t *testing.T) {
	client := &mockClient{source: pngBytes(t, 40, 30, 3)}
	p := New("prod-1", client, Config{}, newTestLogger())
	ctx := context.Background()
	require.NoError(t, p.Load(ctx, stored("r1")))
	_, err := p.Editor().Open(ctx, "asset-r1")
	require.NoError(t, err)
	_, err = p.Editor().Preview(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Close(ctx))
	require.NoError(t, p.Close(ctx))

	assert.Equal(t, ledger.Stats{Created: 1, Released: 1, Live: 0}, p.Stats())
	_, err = p.Assets(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSessionClosed)
}
