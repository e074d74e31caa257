// Package assetlist holds the ordered image list of one product draft.
//
// Every mutation runs on a single goroutine owned by the List, so admission,
// removal, reorder, role overrides and upload completions are applied one at
// a time. Uploads run in the background and report back through the same
// queue.
package assetlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/ledger"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

// Uploader stores encoded bytes in the remote asset store.
type Uploader interface {
	UploadAsset(ctx context.Context, data []byte, contentType string) (*domain.AssetMetadata, error)
}

// Handles is the local handle ledger the list mints previews from.
type Handles interface {
	Create(owner string, data []byte, contentType string) ledger.Handle
	Open(h ledger.Handle) ([]byte, string, error)
	Release(h ledger.Handle) bool
	ReleaseOwner(owner string) int
	ReleaseAll() int
}

// EventType names a change notification.
type EventType string

const (
	EventAdmitted     EventType = "admitted"
	EventUploaded     EventType = "uploaded"
	EventUploadFailed EventType = "upload_failed"
	EventRemoved      EventType = "removed"
	EventReordered    EventType = "reordered"
	EventRoleChanged  EventType = "role_changed"
	EventEdited       EventType = "edited"
	EventOrphaned     EventType = "orphaned"
)

// Event is a change notification. Err is set for EventUploadFailed.
type Event struct {
	Type    EventType
	AssetID string
	Err     error
}

// Options configures a List.
type Options struct {
	Limits domain.Limits
	Logger *slog.Logger
	// Notify is called on the list goroutine after each change. It must not
	// call back into the list.
	Notify func(Event)
}

type record struct {
	asset domain.ImageAsset
	// seq identifies the latest upload started for the asset; completions
	// carrying an older value are stale.
	seq        uint64
	editing    bool
	prevStatus domain.Status
}

// List is the ordered, single-writer collection of assets of one draft.
type List struct {
	uploader Uploader
	handles  Handles
	limits   domain.Limits
	logger   *slog.Logger
	notify   func(Event)

	ops  chan func()
	stop chan struct{}
	done chan struct{}

	// ctx is canceled by Close to abort in-flight uploads.
	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once

	// Owned by the list goroutine.
	records    []*record
	deleted    []string
	deletedSet map[string]struct{}
	// loaded holds the remote ids of the stored manifest. They belong to the
	// product, not to this session.
	loaded      map[string]struct{}
	nextSeq     uint64
	editingID   string
	closing     bool
	sealed      bool
	idleWaiters []chan struct{}
}

// New creates a list and starts its goroutine. Call Close to stop it.
func New(uploader Uploader, handles Handles, opts Options) *List {
	limits := opts.Limits.WithDefaults()
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	l := &List{
		uploader:   uploader,
		handles:    handles,
		limits:     limits,
		logger:     logger,
		notify:     opts.Notify,
		ops:        make(chan func()),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		sem:        make(chan struct{}, limits.UploadConcurrency),
		deletedSet: make(map[string]struct{}),
		loaded:     make(map[string]struct{}),
	}
	go l.loop()
	return l
}

// Limits returns the effective configuration.
func (l *List) Limits() domain.Limits {
	return l.limits
}

func (l *List) loop() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.ops:
			fn()
		case <-l.stop:
			return
		}
	}
}

var errClosed = fmt.Errorf("asset list: %w", apperrors.ErrSessionClosed)

// mutable reports why the list refuses changes, if it does.
func (l *List) mutable() error {
	if l.closing {
		return errClosed
	}
	if l.sealed {
		return apperrors.Busy("draft is being submitted")
	}
	return nil
}

// do runs fn on the list goroutine and returns its error.
func (l *List) do(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	select {
	case l.ops <- func() { errCh <- fn() }:
	case <-l.done:
		return errClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errCh
}

func (l *List) emit(e Event) {
	if l.notify != nil {
		l.notify(e)
	}
}

// Load seeds an empty list with the stored assets of a product. Stored
// roles are kept when they satisfy the role limits, otherwise roles are
// recomputed from position.
func (l *List) Load(ctx context.Context, existing []domain.ImageAsset) error {
	return l.do(ctx, func() error {
		if l.closing {
			return errClosed
		}
		if len(l.records) > 0 {
			return apperrors.InvalidState("asset list is already populated")
		}
		if len(existing) > l.limits.MaxAssets {
			return apperrors.Capacity(len(existing)-l.limits.MaxAssets, l.limits.MaxAssets)
		}

		for _, a := range existing {
			a.Status = domain.StatusDone
			a.LocalHandle = ""
			a.LastError = ""
			if a.ID == "" {
				a.ID = newAssetID()
			}
			if a.RemoteID != "" {
				l.loaded[a.RemoteID] = struct{}{}
			}
			l.records = append(l.records, &record{asset: a})
		}
		if !rolesValid(l.records) {
			assignPositional(l.records)
		}

		l.logger.InfoContext(ctx, "asset list loaded", slog.Int("count", len(l.records)))
		return nil
	})
}

// Snapshot returns copies of every asset in display order.
func (l *List) Snapshot(ctx context.Context) ([]domain.ImageAsset, error) {
	var out []domain.ImageAsset
	err := l.do(ctx, func() error {
		out = make([]domain.ImageAsset, len(l.records))
		for i, r := range l.records {
			out[i] = r.asset
		}
		return nil
	})
	return out, err
}

// Get returns a copy of one asset.
func (l *List) Get(ctx context.Context, id string) (*domain.ImageAsset, error) {
	var out domain.ImageAsset
	err := l.do(ctx, func() error {
		_, r := l.find(id)
		if r == nil {
			return apperrors.NotFound("asset", id)
		}
		out = r.asset
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Order returns the asset IDs in display order, or nil once closed.
func (l *List) Order() []string {
	var ids []string
	_ = l.do(context.Background(), func() error {
		ids = l.order()
		return nil
	})
	return ids
}

func (l *List) order() []string {
	ids := make([]string, len(l.records))
	for i, r := range l.records {
		ids[i] = r.asset.ID
	}
	return ids
}

// Submission exports the ordered list and the deletion ledger. It is refused
// with BUSY while an upload is pending and with VALIDATION_ERROR while an
// asset is in the error state.
func (l *List) Submission(ctx context.Context) (*domain.Submission, error) {
	var sub *domain.Submission
	err := l.do(ctx, func() error {
		var err error
		sub, err = l.submission()
		return err
	})
	return sub, err
}

// Seal exports like Submission and, on success, freezes the list: every
// mutation is refused with BUSY until Unseal or Close. The returned
// submission is exactly what a persisted manifest will hold.
func (l *List) Seal(ctx context.Context) (*domain.Submission, error) {
	var sub *domain.Submission
	err := l.do(ctx, func() error {
		if l.closing {
			return errClosed
		}
		var err error
		if sub, err = l.submission(); err != nil {
			return err
		}
		l.sealed = true
		return nil
	})
	return sub, err
}

// Unseal lifts a Seal after the submission failed to persist.
func (l *List) Unseal(ctx context.Context) error {
	return l.do(ctx, func() error {
		l.sealed = false
		return nil
	})
}

func (l *List) submission() (*domain.Submission, error) {
	assets := make([]domain.SubmittedAsset, 0, len(l.records))
	for _, r := range l.records {
		a := r.asset
		switch a.Status {
		case domain.StatusUploading:
			return nil, apperrors.Busy(fmt.Sprintf("asset %s is still uploading", a.ID))
		case domain.StatusError:
			return nil, apperrors.Validation(fmt.Sprintf("asset %s failed to upload; retry or remove it", a.ID))
		}
		assets = append(assets, domain.SubmittedAsset{
			RemoteID:   a.RemoteID,
			URL:        a.URL,
			Width:      a.Width,
			Height:     a.Height,
			Format:     a.Format,
			ByteSize:   a.ByteSize,
			UploadedAt: a.UploadedAt,
			Role:       a.Role,
		})
	}
	return &domain.Submission{
		Assets:           assets,
		DeletedRemoteIDs: append([]string{}, l.deleted...),
	}, nil
}

// DeletedRemoteIDs returns the deletion ledger in insertion order.
func (l *List) DeletedRemoteIDs(ctx context.Context) ([]string, error) {
	var out []string
	err := l.do(ctx, func() error {
		out = append([]string{}, l.deleted...)
		return nil
	})
	return out, err
}

// AckDeleted drops ids that were purged from the remote store.
func (l *List) AckDeleted(ctx context.Context, ids []string) error {
	return l.do(ctx, func() error {
		acked := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			acked[id] = struct{}{}
			delete(l.deletedSet, id)
		}
		kept := l.deleted[:0]
		for _, id := range l.deleted {
			if _, ok := acked[id]; !ok {
				kept = append(kept, id)
			}
		}
		l.deleted = kept
		return nil
	})
}

// WaitIdle blocks until no asset is uploading.
func (l *List) WaitIdle(ctx context.Context) error {
	var wait chan struct{}
	err := l.do(ctx, func() error {
		if l.pendingUploads() == 0 {
			return nil
		}
		wait = make(chan struct{})
		l.idleWaiters = append(l.idleWaiters, wait)
		return nil
	})
	if err != nil || wait == nil {
		return err
	}
	select {
	case <-wait:
		return nil
	case <-l.done:
		return errClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain refuses further changes, aborts in-flight uploads and waits for them
// to report back. It returns the remote ids uploaded during this session:
// those of current assets and those in the deletion ledger, minus every id
// that came from Load. Call Close afterwards.
func (l *List) Drain(ctx context.Context) ([]string, error) {
	err := l.do(ctx, func() error {
		l.closing = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.cancel()
	l.wg.Wait()

	var ids []string
	err = l.do(ctx, func() error {
		seen := make(map[string]struct{}, len(l.records)+len(l.deleted))
		add := func(id string) {
			if id == "" {
				return
			}
			if _, ok := l.loaded[id]; ok {
				return
			}
			if _, ok := seen[id]; ok {
				return
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		for _, r := range l.records {
			add(r.asset.RemoteID)
		}
		for _, id := range l.deleted {
			add(id)
		}
		return nil
	})
	return ids, err
}

// Close aborts in-flight uploads, waits for them, stops the list goroutine
// and releases every local handle. It is safe to call more than once.
func (l *List) Close(ctx context.Context) error {
	var err error
	l.closeOnce.Do(func() {
		err = l.do(context.WithoutCancel(ctx), func() error {
			l.closing = true
			return nil
		})
		l.cancel()
		l.wg.Wait()
		close(l.stop)
		<-l.done

		released := l.handles.ReleaseAll()
		l.logger.InfoContext(ctx, "asset list closed",
			slog.Int("assets", len(l.records)),
			slog.Int("released_handles", released),
		)
	})
	return err
}

func (l *List) find(id string) (int, *record) {
	for i, r := range l.records {
		if r.asset.ID == id {
			return i, r
		}
	}
	return -1, nil
}

func (l *List) pendingUploads() int {
	n := 0
	for _, r := range l.records {
		if r.asset.Status == domain.StatusUploading {
			n++
		}
	}
	return n
}

// settle wakes WaitIdle callers once nothing is uploading.
func (l *List) settle() {
	if len(l.idleWaiters) == 0 || l.pendingUploads() > 0 {
		return
	}
	for _, w := range l.idleWaiters {
		close(w)
	}
	l.idleWaiters = nil
}

// addDeleted records a remote id in the deletion ledger once.
func (l *List) addDeleted(remoteID string) {
	if remoteID == "" {
		return
	}
	if _, ok := l.deletedSet[remoteID]; ok {
		return
	}
	l.deletedSet[remoteID] = struct{}{}
	l.deleted = append(l.deleted, remoteID)
}
