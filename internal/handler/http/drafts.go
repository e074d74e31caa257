package http

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/editor"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/service"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/httputil"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/validator"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// DraftHandler handles HTTP requests for product media drafts.
type DraftHandler struct {
	service *service.DraftService
	logger  *slog.Logger
}

// NewDraftHandler creates a new draft HTTP handler.
func NewDraftHandler(svc *service.DraftService, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateDraftRequest is the JSON request body for opening a draft.
type CreateDraftRequest struct {
	ProductID string `json:"product_id" validate:"required,max=255"`
}

// SetRoleRequest is the JSON request body for a manual role assignment.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=cover thumbnail gallery"`
}

// ReorderRequest is the JSON request body for moving an asset.
type ReorderRequest struct {
	AssetID     string `json:"asset_id" validate:"required"`
	TargetIndex *int   `json:"target_index" validate:"required,gte=0"`
}

// --- Response DTOs ---

type limitsResponse struct {
	MaxAssets        int      `json:"max_assets"`
	MaxBytesPerAsset int64    `json:"max_bytes_per_asset"`
	AllowedMimeTypes []string `json:"allowed_mime_types"`
	AspectRatio      string   `json:"aspect_ratio"`
	RolePolicy       string   `json:"role_policy"`
}

type draftResponse struct {
	ID        string              `json:"id"`
	ProductID string              `json:"product_id"`
	CreatedAt time.Time           `json:"created_at"`
	Assets    []domain.ImageAsset `json:"assets"`
	Editor    *editor.View        `json:"editor"`
	Limits    limitsResponse      `json:"limits"`
}

func (h *DraftHandler) draftView(r *http.Request, d *service.Draft) (*draftResponse, error) {
	p := d.Pipeline()
	assets, err := p.Assets(r.Context())
	if err != nil {
		return nil, err
	}
	l := p.Limits()
	return &draftResponse{
		ID:        d.ID,
		ProductID: d.ProductID,
		CreatedAt: d.CreatedAt,
		Assets:    assets,
		Editor:    p.Editor().View(),
		Limits: limitsResponse{
			MaxAssets:        l.MaxAssets,
			MaxBytesPerAsset: l.MaxBytesPerAsset,
			AllowedMimeTypes: l.AllowedMimeTypes,
			AspectRatio:      l.AspectRatio.String(),
			RolePolicy:       string(l.RolePolicy),
		},
	}, nil
}

// draft resolves the {draftID} path parameter. On failure it writes the
// error response and returns false.
func (h *DraftHandler) draft(w http.ResponseWriter, r *http.Request) (*service.Draft, bool) {
	d, err := h.service.GetDraft(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return nil, false
	}
	return d, true
}

// decode reads and validates a JSON body. On failure it writes a 400 and
// returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// --- Handlers ---

// CreateDraft handles POST /api/v1/drafts.
func (h *DraftHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req CreateDraftRequest
	if !decode(w, r, &req) {
		return
	}

	d, err := h.service.CreateDraft(r.Context(), req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	view, err := h.draftView(r, d)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, view)
}

// GetDraft handles GET /api/v1/drafts/{draftID}.
func (h *DraftHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	view, err := h.draftView(r, d)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// DiscardDraft handles DELETE /api/v1/drafts/{draftID}.
func (h *DraftHandler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DiscardDraft(r.Context(), chi.URLParam(r, "draftID")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /api/v1/drafts/{draftID}/submit.
func (h *DraftHandler) Submit(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Submit(r.Context(), chi.URLParam(r, "draftID"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// AddFiles handles POST /api/v1/drafts/{draftID}/files (multipart/form-data,
// one or more "files" parts).
func (h *DraftHandler) AddFiles(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	limits := d.Pipeline().Limits()

	// Leave room for every allowed file plus 1MB of form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, int64(limits.MaxAssets)*limits.MaxBytesPerAsset+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "failed to parse multipart form: " + err.Error()},
		})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "at least one file is required"},
		})
		return
	}

	files := make([]domain.RawFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("cannot read file "+fh.Filename), h.logger)
			return
		}
		// Read one byte past the limit so admission reports the file as oversized.
		data, err := io.ReadAll(io.LimitReader(f, limits.MaxBytesPerAsset+1))
		_ = f.Close()
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("cannot read file "+fh.Filename), h.logger)
			return
		}

		contentType := fh.Header.Get("Content-Type")
		if contentType == "application/octet-stream" {
			contentType = ""
		}
		files = append(files, domain.RawFile{Name: fh.Filename, ContentType: contentType, Data: data})
	}

	report, err := d.Pipeline().AddFiles(r.Context(), files)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if len(report.Admitted) > 0 {
		status = http.StatusCreated
	}
	httputil.WriteData(w, status, report)
}

// ListAssets handles GET /api/v1/drafts/{draftID}/assets.
func (h *DraftHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	assets, err := d.Pipeline().Assets(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, assets)
}

// RemoveAsset handles DELETE /api/v1/drafts/{draftID}/assets/{assetID}.
func (h *DraftHandler) RemoveAsset(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	if err := d.Pipeline().Remove(r.Context(), chi.URLParam(r, "assetID")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetRole handles PUT /api/v1/drafts/{draftID}/assets/{assetID}/role.
func (h *DraftHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req SetRoleRequest
	if !decode(w, r, &req) {
		return
	}

	p := d.Pipeline()
	if err := p.SetRole(r.Context(), chi.URLParam(r, "assetID"), domain.Role(req.Role)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeAssets(w, r, d)
}

// RetryUpload handles POST /api/v1/drafts/{draftID}/assets/{assetID}/retry.
func (h *DraftHandler) RetryUpload(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "assetID")
	if err := d.Pipeline().Retry(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	asset, err := d.Pipeline().Asset(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusAccepted, asset)
}

// Reorder handles POST /api/v1/drafts/{draftID}/reorder.
func (h *DraftHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req ReorderRequest
	if !decode(w, r, &req) {
		return
	}

	if err := d.Pipeline().Reorder(r.Context(), req.AssetID, *req.TargetIndex); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeAssets(w, r, d)
}

func (h *DraftHandler) writeAssets(w http.ResponseWriter, r *http.Request, d *service.Draft) {
	assets, err := d.Pipeline().Assets(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, assets)
}

// ServePreview handles GET /api/v1/drafts/{draftID}/previews/{handle}. The
// handle stays pinned while its bytes are written.
func (h *DraftHandler) ServePreview(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	preview, err := d.Pipeline().OpenPreview(chi.URLParam(r, "handle"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer func() { _ = preview.Close() }()

	w.Header().Set("Content-Type", preview.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(preview.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(preview.Data)
}
