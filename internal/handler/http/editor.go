package http

import (
	"net/http"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/editor"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/transform"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/httputil"
)

// OpenEditorRequest is the JSON request body for starting an edit.
type OpenEditorRequest struct {
	AssetID string `json:"asset_id" validate:"required"`
}

// UpdateEditorRequest changes one parameter, the crop rectangle, or both.
type UpdateEditorRequest struct {
	Param *string         `json:"param" validate:"omitempty,oneof=zoom rotation brightness contrast grayscale"`
	Value *float64        `json:"value"`
	Crop  *transform.Rect `json:"crop"`
}

// DragRequest drives a drag-and-drop gesture.
type DragRequest struct {
	Action  string `json:"action" validate:"required,oneof=start over drop cancel"`
	AssetID string `json:"asset_id"`
	Index   *int   `json:"index" validate:"omitempty,gte=0"`
}

type dragResponse struct {
	Active string   `json:"active,omitempty"`
	Order  []string `json:"order"`
}

// GetEditor handles GET /api/v1/drafts/{draftID}/editor.
func (h *DraftHandler) GetEditor(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, d.Pipeline().Editor().View())
}

// OpenEditor handles POST /api/v1/drafts/{draftID}/editor.
func (h *DraftHandler) OpenEditor(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req OpenEditorRequest
	if !decode(w, r, &req) {
		return
	}

	view, err := d.Pipeline().Editor().Open(r.Context(), req.AssetID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, view)
}

// UpdateEditor handles PATCH /api/v1/drafts/{draftID}/editor.
func (h *DraftHandler) UpdateEditor(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req UpdateEditorRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Crop == nil && (req.Param == nil || req.Value == nil) {
		httputil.WriteError(w, r, apperrors.InvalidInput("either param and value, or crop, is required"), h.logger)
		return
	}

	session := d.Pipeline().Editor()
	var (
		view *editor.View
		err  error
	)
	if req.Param != nil && req.Value != nil {
		view, err = session.Update(editor.Param(*req.Param), *req.Value)
	}
	if err == nil && req.Crop != nil {
		view, err = session.SetCrop(*req.Crop)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// PreviewEdit handles POST /api/v1/drafts/{draftID}/editor/preview.
func (h *DraftHandler) PreviewEdit(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	view, err := d.Pipeline().Editor().Preview(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// CommitEdit handles POST /api/v1/drafts/{draftID}/editor/commit.
func (h *DraftHandler) CommitEdit(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	p := d.Pipeline()
	if err := p.Editor().Commit(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeAssets(w, r, d)
}

// CancelEdit handles DELETE /api/v1/drafts/{draftID}/editor.
func (h *DraftHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	if err := d.Pipeline().Editor().Cancel(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Drag handles POST /api/v1/drafts/{draftID}/drag. Hover positions only
// change the previewed order; the list is reordered on drop.
func (h *DraftHandler) Drag(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	var req DragRequest
	if !decode(w, r, &req) {
		return
	}

	ctrl := d.Pipeline().Drag()
	var err error
	switch req.Action {
	case "start":
		if req.AssetID == "" {
			err = apperrors.InvalidInput("asset_id is required to start a drag")
			break
		}
		err = ctrl.Start(req.AssetID)
	case "over":
		if req.Index == nil {
			err = apperrors.InvalidInput("index is required while dragging")
			break
		}
		err = ctrl.Over(*req.Index)
	case "drop":
		err = ctrl.Drop(r.Context())
	case "cancel":
		ctrl.Cancel()
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	order, err := ctrl.Preview()
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, dragResponse{Active: ctrl.Active(), Order: order})
}
