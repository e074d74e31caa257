package assetlist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/ledger"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

// BeginEdit reserves an asset for an edit session and returns a copy of it.
// Only one asset per list can be reserved, and uploading assets cannot be.
func (l *List) BeginEdit(ctx context.Context, id string) (*domain.ImageAsset, error) {
	var out domain.ImageAsset
	err := l.do(ctx, func() error {
		if err := l.mutable(); err != nil {
			return err
		}
		_, r := l.find(id)
		if r == nil {
			return apperrors.NotFound("asset", id)
		}
		if l.editingID != "" {
			return apperrors.InvalidState(fmt.Sprintf("asset %s is already being edited", l.editingID))
		}
		if r.asset.Status == domain.StatusUploading {
			return apperrors.Busy(fmt.Sprintf("asset %s is still uploading", id))
		}
		r.editing = true
		l.editingID = id
		out = r.asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EndEdit releases the reservation taken by BeginEdit. Ending an edit that
// is not open is a no-op.
func (l *List) EndEdit(ctx context.Context, id string) error {
	return l.do(ctx, func() error {
		if l.editingID != id {
			return nil
		}
		l.editingID = ""
		if _, r := l.find(id); r != nil {
			r.editing = false
		}
		return nil
	})
}

// MarkReuploading flags an asset under edit as uploading its replacement
// bytes and returns the upload sequence to pass to ApplyEdit or
// RevertReupload.
func (l *List) MarkReuploading(ctx context.Context, id string) (uint64, error) {
	var seq uint64
	err := l.do(ctx, func() error {
		if err := l.mutable(); err != nil {
			return err
		}
		_, r := l.find(id)
		if r == nil {
			return apperrors.NotFound("asset", id)
		}
		if !r.editing {
			return apperrors.InvalidState(fmt.Sprintf("asset %s is not being edited", id))
		}
		l.nextSeq++
		r.seq = l.nextSeq
		r.prevStatus = r.asset.Status
		r.asset.Status = domain.StatusUploading
		seq = r.seq
		return nil
	})
	return seq, err
}

// ApplyEdit replaces the asset's pixels with an uploaded edit. The previous
// remote copy goes to the deletion ledger, the previous local handle is
// released and the edit reservation ends. A result for a missing asset or a
// superseded upload is orphaned instead.
func (l *List) ApplyEdit(ctx context.Context, id string, seq uint64, contentType string, meta *domain.AssetMetadata) error {
	return l.do(ctx, func() error {
		defer l.settle()

		_, r := l.find(id)
		if r == nil || r.seq != seq {
			l.addDeleted(meta.RemoteID)
			l.emit(Event{Type: EventOrphaned, AssetID: id})
			return apperrors.Conflict(fmt.Sprintf("asset %s changed while its edit was uploading", id))
		}

		oldRemote := r.asset.RemoteID
		if oldRemote != "" && oldRemote != meta.RemoteID {
			l.addDeleted(oldRemote)
		}
		l.handles.Release(ledger.Handle(r.asset.LocalHandle))
		r.asset.LocalHandle = ""
		r.asset.ApplyMetadata(meta)
		r.asset.ContentType = contentType
		r.asset.Status = domain.StatusDone
		r.asset.LastError = ""
		r.editing = false
		l.editingID = ""
		l.emit(Event{Type: EventEdited, AssetID: id})

		l.logger.InfoContext(ctx, "asset edit applied",
			slog.String("asset_id", id),
			slog.String("remote_id", meta.RemoteID),
			slog.String("replaced_remote_id", oldRemote),
		)
		return nil
	})
}

// RevertReupload restores the status the asset had before MarkReuploading.
// The edit reservation stays open so the session can retry.
func (l *List) RevertReupload(ctx context.Context, id string, seq uint64) error {
	return l.do(ctx, func() error {
		defer l.settle()

		_, r := l.find(id)
		if r == nil || r.seq != seq || r.asset.Status != domain.StatusUploading {
			return nil
		}
		r.asset.Status = r.prevStatus
		return nil
	})
}

// EditingID returns the asset currently reserved for editing, or "".
func (l *List) EditingID(ctx context.Context) (string, error) {
	var id string
	err := l.do(ctx, func() error {
		id = l.editingID
		return nil
	})
	return id, err
}
