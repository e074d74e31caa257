package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/event"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/lease"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/pipeline"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/repository"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

// safeIDPattern matches only alphanumeric characters, hyphens, and underscores.
var safeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var openDrafts = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "media_open_drafts",
	Help: "Number of product media drafts currently open",
})

// EventPublisher publishes draft lifecycle events.
type EventPublisher interface {
	PublishProductSubmitted(ctx context.Context, data event.ProductSubmittedData) error
	PublishDraftDiscarded(ctx context.Context, data event.DraftDiscardedData) error
}

// Draft is an open media pipeline for one product.
type Draft struct {
	ID        string
	ProductID string
	CreatedAt time.Time

	pipeline   *pipeline.Pipeline
	submitting bool
}

// Pipeline returns the draft's media pipeline.
func (d *Draft) Pipeline() *pipeline.Pipeline { return d.pipeline }

// SubmitResult is returned by a successful submit.
type SubmitResult struct {
	DraftID    string                `json:"draft_id"`
	ProductID  string                `json:"product_id"`
	Submission *domain.Submission    `json:"submission"`
	Purge      *pipeline.PurgeReport `json:"purge"`
}

// DraftService keeps the open drafts and runs the submit workflow:
// persist the manifest, purge removed remote assets, publish an event.
type DraftService struct {
	repo     repository.ManifestRepository
	client   pipeline.AssetClient
	producer EventPublisher
	locker   lease.Locker
	cfg      pipeline.Config
	logger   *slog.Logger

	mu        sync.Mutex
	drafts    map[string]*Draft
	byProduct map[string]string
}

// NewDraftService creates a new draft service. A nil locker keeps product
// leases in process.
func NewDraftService(
	repo repository.ManifestRepository,
	client pipeline.AssetClient,
	producer EventPublisher,
	locker lease.Locker,
	cfg pipeline.Config,
	logger *slog.Logger,
) *DraftService {
	if locker == nil {
		locker = lease.NewLocal(lease.DefaultTTL)
	}
	return &DraftService{
		repo:      repo,
		client:    client,
		producer:  producer,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
		drafts:    make(map[string]*Draft),
		byProduct: make(map[string]string),
	}
}

// CreateDraft opens a draft for a product, seeded with its stored images.
// A product has at most one open draft.
func (s *DraftService) CreateDraft(ctx context.Context, productID string) (*Draft, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if !safeIDPattern.MatchString(productID) {
		return nil, apperrors.InvalidInput("product id contains invalid characters")
	}

	s.mu.Lock()
	if existing, ok := s.byProduct[productID]; ok {
		s.mu.Unlock()
		return nil, apperrors.Conflict(fmt.Sprintf("product %s already has open draft %s", productID, existing))
	}
	// Reserve the product while the lease is taken and the manifest loads.
	s.byProduct[productID] = ""
	s.mu.Unlock()

	id := uuid.New().String()
	err := s.locker.Acquire(ctx, productID, id)
	var d *Draft
	if err == nil {
		d, err = s.openDraft(ctx, id, productID)
		if err != nil {
			s.releaseLease(ctx, productID, id)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		delete(s.byProduct, productID)
		return nil, err
	}
	s.drafts[d.ID] = d
	s.byProduct[productID] = d.ID
	openDrafts.Inc()

	s.logger.InfoContext(ctx, "draft opened",
		slog.String("draft_id", d.ID),
		slog.String("product_id", productID),
	)
	return d, nil
}

func (s *DraftService) openDraft(ctx context.Context, id, productID string) (*Draft, error) {
	stored, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load manifest of product %s: %w", productID, err)
	}

	p := pipeline.New(productID, s.client, s.cfg, s.logger)
	if err := p.Load(ctx, stored); err != nil {
		_ = p.Close(ctx)
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}

	return &Draft{
		ID:        id,
		ProductID: productID,
		CreatedAt: time.Now().UTC(),
		pipeline:  p,
	}, nil
}

// GetDraft returns an open draft.
func (s *DraftService) GetDraft(_ context.Context, id string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, apperrors.NotFound("draft", id)
	}
	return d, nil
}

// DiscardDraft closes a draft without persisting anything. Objects uploaded
// by the draft are deleted from the asset store; removed stored assets are
// kept, since the stored manifest still references them.
func (s *DraftService) DiscardDraft(ctx context.Context, id string) error {
	d, err := s.take(id)
	if err != nil {
		return err
	}

	purge, err := d.pipeline.Discard(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "draft pipeline did not close cleanly",
			slog.String("draft_id", id),
			slog.String("error", err.Error()),
		)
	}
	if purge != nil && len(purge.Failed) > 0 {
		s.logger.WarnContext(ctx, "uploads of discarded draft left in the asset store",
			slog.String("draft_id", id),
			slog.Any("remote_ids", purge.Failed),
		)
	}
	s.releaseLease(ctx, d.ProductID, d.ID)

	if err := s.producer.PublishDraftDiscarded(ctx, event.DraftDiscardedData{ProductID: d.ProductID, DraftID: d.ID}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish draft discarded event",
			slog.String("draft_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "draft discarded",
		slog.String("draft_id", id),
		slog.String("product_id", d.ProductID),
	)
	return nil
}

// Submit persists the draft's ordered images as the product manifest,
// purges removed remote assets and closes the draft. Purge and publish
// failures are logged and do not fail the submit. A submit refused because
// uploads are pending or failed leaves the draft open. From export until
// the manifest is stored the draft is sealed and edits get BUSY, so only the
// exported deletions are purged.
func (s *DraftService) Submit(ctx context.Context, id string) (*SubmitResult, error) {
	d, err := s.beginSubmit(id)
	if err != nil {
		return nil, err
	}

	sub, err := d.pipeline.Export(ctx)
	if err != nil {
		s.endSubmit(d, false)
		return nil, err
	}
	if err := s.repo.ReplaceForProduct(ctx, d.ProductID, sub.Assets); err != nil {
		if uerr := d.pipeline.Unseal(ctx); uerr != nil {
			s.logger.WarnContext(ctx, "failed to reopen draft after submit error",
				slog.String("draft_id", id),
				slog.String("error", uerr.Error()),
			)
		}
		s.endSubmit(d, false)
		return nil, fmt.Errorf("persist manifest of product %s: %w", d.ProductID, err)
	}

	purge, err := d.pipeline.PurgeDeleted(ctx, sub.DeletedRemoteIDs)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to purge deleted assets",
			slog.String("draft_id", id),
			slog.String("error", err.Error()),
		)
		purge = &pipeline.PurgeReport{Deleted: []string{}, Failed: sub.DeletedRemoteIDs}
	}

	if err := s.producer.PublishProductSubmitted(ctx, event.ProductSubmittedData{
		ProductID:        d.ProductID,
		DraftID:          d.ID,
		Assets:           sub.Assets,
		DeletedRemoteIDs: sub.DeletedRemoteIDs,
		PurgeFailed:      purge.Failed,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product submitted event",
			slog.String("draft_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.endSubmit(d, true)
	if err := d.pipeline.Close(ctx); err != nil {
		s.logger.WarnContext(ctx, "draft pipeline did not close cleanly",
			slog.String("draft_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.releaseLease(ctx, d.ProductID, d.ID)

	s.logger.InfoContext(ctx, "draft submitted",
		slog.String("draft_id", id),
		slog.String("product_id", d.ProductID),
		slog.Int("assets", len(sub.Assets)),
		slog.Int("purged", len(purge.Deleted)),
		slog.Int("purge_failed", len(purge.Failed)),
	)

	return &SubmitResult{
		DraftID:    d.ID,
		ProductID:  d.ProductID,
		Submission: sub,
		Purge:      purge,
	}, nil
}

// Count returns the number of open drafts.
func (s *DraftService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.drafts)
}

// Close closes every open draft. It is called on shutdown.
func (s *DraftService) Close(ctx context.Context) error {
	s.mu.Lock()
	drafts := make([]*Draft, 0, len(s.drafts))
	for _, d := range s.drafts {
		drafts = append(drafts, d)
	}
	s.drafts = make(map[string]*Draft)
	s.byProduct = make(map[string]string)
	s.mu.Unlock()

	for _, d := range drafts {
		if err := d.pipeline.Close(ctx); err != nil {
			s.logger.WarnContext(ctx, "draft pipeline did not close cleanly",
				slog.String("draft_id", d.ID),
				slog.String("error", err.Error()),
			)
		}
		s.releaseLease(ctx, d.ProductID, d.ID)
		openDrafts.Dec()
	}
	return nil
}

// releaseLease drops the product lease. A lease that cannot be released
// expires on its own.
func (s *DraftService) releaseLease(ctx context.Context, productID, draftID string) {
	if err := s.locker.Release(ctx, productID, draftID); err != nil {
		s.logger.WarnContext(ctx, "failed to release product lease",
			slog.String("product_id", productID),
			slog.String("draft_id", draftID),
			slog.String("error", err.Error()),
		)
	}
}

// take removes an idle draft from the registry.
func (s *DraftService) take(id string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, apperrors.NotFound("draft", id)
	}
	if d.submitting {
		return nil, apperrors.Conflict(fmt.Sprintf("draft %s is being submitted", id))
	}
	s.removeLocked(d)
	return d, nil
}

func (s *DraftService) beginSubmit(id string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts[id]
	if !ok {
		return nil, apperrors.NotFound("draft", id)
	}
	if d.submitting {
		return nil, apperrors.Conflict(fmt.Sprintf("draft %s is being submitted", id))
	}
	d.submitting = true
	return d, nil
}

func (s *DraftService) endSubmit(d *Draft, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d.submitting = false
	if done {
		s.removeLocked(d)
	}
}

func (s *DraftService) removeLocked(d *Draft) {
	if _, ok := s.drafts[d.ID]; !ok {
		return
	}
	delete(s.drafts, d.ID)
	delete(s.byProduct, d.ProductID)
	openDrafts.Dec()
}
