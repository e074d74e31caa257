// Package pipeline composes the asset list, the ledger, the edit session and
// the reorder controller into the media pipeline of one product draft.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/assetlist"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/editor"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/ledger"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/reorder"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/transform"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

// DefaultPurgeConcurrency bounds parallel remote deletes.
const DefaultPurgeConcurrency = 4

// AssetClient is the remote asset store.
type AssetClient interface {
	UploadAsset(ctx context.Context, data []byte, contentType string) (*domain.AssetMetadata, error)
	DeleteAsset(ctx context.Context, remoteID string) error
	FetchAsset(ctx context.Context, remoteID string) ([]byte, string, error)
}

// Config configures a Pipeline.
type Config struct {
	Limits           domain.Limits
	Transform        transform.Config
	PurgeConcurrency int
	// Notify receives asset list change notifications on the list goroutine.
	Notify func(assetlist.Event)
}

// Pipeline is the media pipeline of one product draft.
type Pipeline struct {
	productID string
	client    AssetClient
	ledger    *ledger.Ledger
	list      *assetlist.List
	editor    *editor.Session
	drag      *reorder.Controller
	purgeN    int
	logger    *slog.Logger

	closeOnce sync.Once
}

// New creates a pipeline with its own handle ledger and asset list.
func New(productID string, client AssetClient, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("product_id", productID))

	led := ledger.New(logger)
	list := assetlist.New(client, led, assetlist.Options{
		Limits: cfg.Limits,
		Logger: logger,
		Notify: cfg.Notify,
	})
	engine := transform.NewEngine(led, cfg.Transform, logger)

	purgeN := cfg.PurgeConcurrency
	if purgeN <= 0 {
		purgeN = DefaultPurgeConcurrency
	}

	return &Pipeline{
		productID: productID,
		client:    client,
		ledger:    led,
		list:      list,
		editor:    editor.NewSession(list, engine, client, led, list.Limits().AspectRatio, logger),
		drag:      reorder.NewController(list, logger),
		purgeN:    purgeN,
		logger:    logger,
	}
}

// ProductID returns the product the pipeline belongs to.
func (p *Pipeline) ProductID() string { return p.productID }

// Limits returns the effective configuration.
func (p *Pipeline) Limits() domain.Limits { return p.list.Limits() }

// Load seeds the pipeline with the stored images of the product.
func (p *Pipeline) Load(ctx context.Context, existing []domain.ImageAsset) error {
	return p.list.Load(ctx, existing)
}

// AddFiles admits user files and starts their uploads.
func (p *Pipeline) AddFiles(ctx context.Context, files []domain.RawFile) (*assetlist.AdmissionReport, error) {
	return p.list.AddFiles(ctx, files)
}

// Remove deletes an asset from the draft.
func (p *Pipeline) Remove(ctx context.Context, id string) error {
	return p.list.Remove(ctx, id)
}

// SetRole manually assigns a role.
func (p *Pipeline) SetRole(ctx context.Context, id string, role domain.Role) error {
	return p.list.SetRole(ctx, id, role)
}

// Reorder moves an asset to targetIndex.
func (p *Pipeline) Reorder(ctx context.Context, id string, targetIndex int) error {
	return p.list.Reorder(ctx, id, targetIndex)
}

// Retry re-uploads a failed asset from its local handle.
func (p *Pipeline) Retry(ctx context.Context, id string) error {
	return p.list.Retry(ctx, id)
}

// Drag returns the drag-and-drop controller.
func (p *Pipeline) Drag() *reorder.Controller { return p.drag }

// Editor returns the edit session.
func (p *Pipeline) Editor() *editor.Session { return p.editor }

// Assets returns the assets in display order.
func (p *Pipeline) Assets(ctx context.Context) ([]domain.ImageAsset, error) {
	return p.list.Snapshot(ctx)
}

// Asset returns one asset.
func (p *Pipeline) Asset(ctx context.Context, id string) (*domain.ImageAsset, error) {
	return p.list.Get(ctx, id)
}

// Export returns the ordered submission and the deletion ledger and seals the
// draft: edits are refused with BUSY until Unseal or Close, so the manifest
// that gets persisted is the one returned here.
func (p *Pipeline) Export(ctx context.Context) (*domain.Submission, error) {
	return p.list.Seal(ctx)
}

// Unseal reopens the draft for edits after its submission failed.
func (p *Pipeline) Unseal(ctx context.Context) error {
	return p.list.Unseal(ctx)
}

// WaitIdle blocks until no upload is in flight.
func (p *Pipeline) WaitIdle(ctx context.Context) error {
	return p.list.WaitIdle(ctx)
}

// Stats returns the handle ledger counters.
func (p *Pipeline) Stats() ledger.Stats { return p.ledger.Stats() }

// Preview is a pinned local handle opened for reading.
type Preview struct {
	Data        []byte
	ContentType string

	handle ledger.Handle
	ledger *ledger.Ledger
	once   sync.Once
}

// Close unpins the handle. A handle released while pinned is freed here.
func (v *Preview) Close() error {
	v.once.Do(func() { v.ledger.Unpin(v.handle) })
	return nil
}

// OpenPreview pins a local handle and returns its bytes. The caller must
// Close the preview once the bytes are no longer displayed.
func (p *Pipeline) OpenPreview(handle string) (*Preview, error) {
	h := ledger.Handle(handle)
	if err := p.ledger.Pin(h); err != nil {
		if errors.Is(err, ledger.ErrReleased) || errors.Is(err, ledger.ErrUnknownHandle) {
			return nil, apperrors.NotFound("preview", handle)
		}
		return nil, err
	}
	data, ct, err := p.ledger.Open(h)
	if err != nil {
		p.ledger.Unpin(h)
		return nil, err
	}
	return &Preview{Data: data, ContentType: ct, handle: h, ledger: p.ledger}, nil
}

// PurgeReport lists the outcome of a purge.
type PurgeReport struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

// PurgeDeleted deletes ids, normally the DeletedRemoteIDs of an exported
// submission, from the asset store and drops the purged ones from the
// deletion ledger. Failures are logged and left in the ledger; they never
// fail the call.
func (p *Pipeline) PurgeDeleted(ctx context.Context, ids []string) (*PurgeReport, error) {
	report := p.purge(ctx, ids)
	if len(report.Deleted) == 0 {
		return report, nil
	}
	if err := p.list.AckDeleted(ctx, report.Deleted); err != nil {
		return report, err
	}

	p.logger.InfoContext(ctx, "purged deleted remote assets",
		slog.Int("deleted", len(report.Deleted)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, nil
}

func (p *Pipeline) purge(ctx context.Context, ids []string) *PurgeReport {
	report := &PurgeReport{Deleted: []string{}, Failed: []string{}}
	if len(ids) == 0 {
		return report
	}

	ok := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.purgeN)
	for i, id := range ids {
		g.Go(func() error {
			if err := p.client.DeleteAsset(gctx, id); err != nil {
				p.logger.WarnContext(gctx, "failed to purge remote asset",
					slog.String("remote_id", id),
					slog.String("error", err.Error()),
				)
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range ids {
		if ok[i] {
			report.Deleted = append(report.Deleted, id)
		} else {
			report.Failed = append(report.Failed, id)
		}
	}
	return report
}

// Discard abandons the draft. In-flight uploads are aborted and every remote
// object this session uploaded is deleted, since no manifest will reference
// it. Assets loaded from the stored manifest are left alone. Delete failures
// are logged and reported, never returned.
func (p *Pipeline) Discard(ctx context.Context) (*PurgeReport, error) {
	p.drag.Cancel()
	if err := p.editor.Close(ctx); err != nil {
		p.logger.WarnContext(ctx, "edit session did not close cleanly", slog.String("error", err.Error()))
	}

	ids, err := p.list.Drain(ctx)
	if err != nil {
		return nil, errors.Join(err, p.Close(ctx))
	}
	report := p.purge(ctx, ids)
	p.logger.InfoContext(ctx, "purged uploads of discarded draft",
		slog.Int("deleted", len(report.Deleted)),
		slog.Int("failed", len(report.Failed)),
	)
	return report, p.Close(ctx)
}

// Close ends the edit session, aborts in-flight uploads and releases every
// local handle. It is safe to call more than once.
func (p *Pipeline) Close(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		p.drag.Cancel()
		if cerr := p.editor.Close(ctx); cerr != nil {
			p.logger.WarnContext(ctx, "edit session did not close cleanly", slog.String("error", cerr.Error()))
		}
		err = p.list.Close(ctx)

		stats := p.ledger.Stats()
		p.logger.InfoContext(ctx, "media pipeline closed",
			slog.Int("handles_created", stats.Created),
			slog.Int("handles_released", stats.Released),
		)
	})
	return err
}
