package assetlist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/reorder"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

// Remove deletes an asset. It is refused with BUSY while the asset is
// uploading or being edited, or while the list is sealed. A remote copy is queued in the deletion ledger
// and the local handles owned by the asset are released.
func (l *List) Remove(ctx context.Context, id string) error {
	return l.do(ctx, func() error {
		if err := l.mutable(); err != nil {
			return err
		}
		i, r := l.find(id)
		if r == nil {
			return apperrors.NotFound("asset", id)
		}
		if r.asset.Status == domain.StatusUploading {
			return apperrors.Busy(fmt.Sprintf("asset %s is still uploading", id))
		}
		if r.editing {
			return apperrors.Busy(fmt.Sprintf("asset %s is being edited", id))
		}

		l.addDeleted(r.asset.RemoteID)
		released := l.handles.ReleaseOwner(id)
		l.records = append(l.records[:i], l.records[i+1:]...)
		l.recomputeRoles()
		l.emit(Event{Type: EventRemoved, AssetID: id})

		l.logger.InfoContext(ctx, "asset removed",
			slog.String("asset_id", id),
			slog.String("remote_id", r.asset.RemoteID),
			slog.Int("released_handles", released),
		)
		return nil
	})
}

// SetRole manually assigns a role. Granting cover demotes the current cover
// to gallery; thumbnail is refused with ROLE_LIMIT when two other assets
// already hold it. The asset is marked pinned.
func (l *List) SetRole(ctx context.Context, id string, role domain.Role) error {
	if !domain.IsValidRole(role) {
		return apperrors.InvalidInput(fmt.Sprintf("unknown role %q", role))
	}

	return l.do(ctx, func() error {
		if err := l.mutable(); err != nil {
			return err
		}
		_, r := l.find(id)
		if r == nil {
			return apperrors.NotFound("asset", id)
		}

		switch role {
		case domain.RoleCover:
			for _, other := range l.records {
				if other != r && other.asset.Role == domain.RoleCover {
					other.asset.Role = domain.RoleGallery
					other.asset.Pinned = false
				}
			}
		case domain.RoleThumbnail:
			held := 0
			for _, other := range l.records {
				if other != r && other.asset.Role == domain.RoleThumbnail {
					held++
				}
			}
			if limit := domain.RoleCapacity(domain.RoleThumbnail); held >= limit {
				return apperrors.RoleLimit(string(role), limit)
			}
		}

		r.asset.Role = role
		r.asset.Pinned = true
		l.emit(Event{Type: EventRoleChanged, AssetID: id})
		l.logger.InfoContext(ctx, "asset role set",
			slog.String("asset_id", id),
			slog.String("role", string(role)),
		)
		return nil
	})
}

// Reorder moves an asset to targetIndex and recomputes roles. Identity,
// status and metadata of every asset are unchanged.
func (l *List) Reorder(ctx context.Context, id string, targetIndex int) error {
	return l.do(ctx, func() error {
		if err := l.mutable(); err != nil {
			return err
		}
		next, err := reorder.Move(l.order(), id, targetIndex)
		if err != nil {
			return err
		}

		byID := make(map[string]*record, len(l.records))
		for _, r := range l.records {
			byID[r.asset.ID] = r
		}
		for i, assetID := range next {
			l.records[i] = byID[assetID]
		}
		l.recomputeRoles()
		l.emit(Event{Type: EventReordered, AssetID: id})
		return nil
	})
}
