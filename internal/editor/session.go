// Package editor implements the single-asset edit session: crop, zoom,
// rotation and filter parameters are adjusted locally, then rendered,
// uploaded and handed back to the asset list on commit.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/ledger"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/transform"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

var commitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "media_edit_commits_total",
		Help: "Edit session commits by outcome",
	},
	[]string{"result"},
)

// State is the edit session state.
type State string

const (
	StateIdle    State = "idle"
	StateEditing State = "editing"
	StateSaving  State = "saving"
)

// Param names an adjustable parameter.
type Param string

const (
	ParamZoom       Param = "zoom"
	ParamRotation   Param = "rotation"
	ParamBrightness Param = "brightness"
	ParamContrast   Param = "contrast"
	ParamGrayscale  Param = "grayscale"
)

// Zoom range.
const (
	MinZoom = 1.0
	MaxZoom = 3.0
)

// Params are the pending adjustments of an open session.
type Params struct {
	Crop     transform.Rect    `json:"crop"`
	Zoom     float64           `json:"zoom"`
	Rotation float64           `json:"rotation"`
	Filters  transform.Filters `json:"filters"`
}

// View is a read-only snapshot of a session.
type View struct {
	State         State   `json:"state"`
	AssetID       string  `json:"asset_id,omitempty"`
	Params        *Params `json:"params,omitempty"`
	SurfaceWidth  int     `json:"surface_width,omitempty"`
	SurfaceHeight int     `json:"surface_height,omitempty"`
	PreviewHandle string  `json:"preview_handle,omitempty"`
}

// AssetList is the part of the asset list an edit session proposes changes
// through. The session never touches asset records directly.
type AssetList interface {
	BeginEdit(ctx context.Context, id string) (*domain.ImageAsset, error)
	EndEdit(ctx context.Context, id string) error
	MarkReuploading(ctx context.Context, id string) (uint64, error)
	ApplyEdit(ctx context.Context, id string, seq uint64, contentType string, meta *domain.AssetMetadata) error
	RevertReupload(ctx context.Context, id string, seq uint64) error
}

// Transformer renders edits.
type Transformer interface {
	Transform(ctx context.Context, req transform.Request) (*transform.Result, error)
}

// Uploader stores rendered edits and fetches remote sources.
type Uploader interface {
	UploadAsset(ctx context.Context, data []byte, contentType string) (*domain.AssetMetadata, error)
	FetchAsset(ctx context.Context, remoteID string) ([]byte, string, error)
}

// Handles opens and releases local handles.
type Handles interface {
	Open(h ledger.Handle) ([]byte, string, error)
	Release(h ledger.Handle) bool
}

// Session is the edit state machine of one asset list. At most one asset is
// edited at a time.
type Session struct {
	list     AssetList
	engine   Transformer
	uploader Uploader
	handles  Handles
	aspect   domain.AspectRatio
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	closed  bool
	assetID string
	source  transform.Raster
	params  Params
	// preview is the handle of the latest rendered preview.
	preview ledger.Handle
	// gen changes whenever the session is opened or ended, so a preview
	// rendered for an earlier session is discarded.
	gen uint64
}

// NewSession creates an idle session.
func NewSession(list AssetList, engine Transformer, uploader Uploader, handles Handles, aspect domain.AspectRatio, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if aspect.Value() <= 0 {
		aspect = domain.DefaultAspectRatio
	}
	return &Session{
		list:     list,
		engine:   engine,
		uploader: uploader,
		handles:  handles,
		aspect:   aspect,
		logger:   logger,
		state:    StateIdle,
	}
}

// Open starts editing an asset with a centred crop at the configured aspect
// ratio, no rotation, identity filters and zoom 1.
func (s *Session) Open(ctx context.Context, id string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("edit session: %w", apperrors.ErrSessionClosed)
	}
	if s.state != StateIdle {
		return nil, apperrors.InvalidState(fmt.Sprintf("edit session is %s on asset %s", s.state, s.assetID))
	}

	asset, err := s.list.BeginEdit(ctx, id)
	if err != nil {
		return nil, err
	}

	src, err := s.loadSource(ctx, asset)
	if err != nil {
		_ = s.list.EndEdit(ctx, id)
		return nil, err
	}

	s.state = StateEditing
	s.assetID = id
	s.source = *src
	s.gen++
	s.params = Params{
		Crop:     transform.CenteredCrop(src.Width, src.Height, s.aspect.Value()),
		Zoom:     MinZoom,
		Rotation: 0,
		Filters:  transform.IdentityFilters(),
	}

	s.logger.InfoContext(ctx, "edit session opened",
		slog.String("asset_id", id),
		slog.Int("width", src.Width),
		slog.Int("height", src.Height),
	)
	return s.viewLocked(), nil
}

// loadSource reads the asset's pixels from its local handle, or from the
// remote store when the asset is already uploaded.
func (s *Session) loadSource(ctx context.Context, asset *domain.ImageAsset) (*transform.Raster, error) {
	var (
		data []byte
		ct   string
		err  error
	)
	if asset.LocalHandle != "" {
		data, ct, err = s.handles.Open(ledger.Handle(asset.LocalHandle))
	} else {
		data, ct, err = s.uploader.FetchAsset(ctx, asset.RemoteID)
	}
	if err != nil {
		return nil, fmt.Errorf("load source of asset %s: %w", asset.ID, err)
	}

	info, err := transform.ReadInfo(data)
	if err != nil {
		return nil, err
	}
	if ct == "" {
		ct = asset.ContentType
	}
	return &transform.Raster{Data: data, ContentType: ct, Width: info.Width, Height: info.Height}, nil
}

// Update changes one parameter. Values are clamped to their valid range.
// Zoom rescales the crop around its centre; rotation re-centres the crop
// in the rotated bounds.
func (s *Session) Update(param Param, value float64) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditing(); err != nil {
		return nil, err
	}

	p := &s.params
	switch param {
	case ParamZoom:
		z := clamp(value, MinZoom, MaxZoom)
		w, h := s.surfaceLocked()
		p.Crop = transform.ScaleAround(p.Crop, p.Zoom/z, w, h)
		p.Zoom = z
	case ParamRotation:
		p.Rotation = transform.NormalizeDegrees(value)
		p.Crop = s.recenterLocked()
	case ParamBrightness:
		p.Filters.Brightness = value
	case ParamContrast:
		p.Filters.Contrast = value
	case ParamGrayscale:
		p.Filters.Grayscale = value
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown parameter %q", param))
	}
	p.Filters = p.Filters.Clamp()
	return s.viewLocked(), nil
}

// SetCrop replaces the crop rectangle, fitted into the rotated surface.
func (s *Session) SetCrop(r transform.Rect) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireEditing(); err != nil {
		return nil, err
	}
	if r.Empty() {
		return nil, apperrors.InvalidInput("crop region must have a positive width and height")
	}
	w, h := s.surfaceLocked()
	s.params.Crop = transform.Fit(r, w, h)
	return s.viewLocked(), nil
}

// Preview renders the current parameters into a new local handle and
// releases the previous preview.
func (s *Session) Preview(ctx context.Context) (*View, error) {
	s.mu.Lock()
	if err := s.requireEditing(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req := s.requestLocked()
	gen := s.gen
	s.mu.Unlock()

	res, err := s.engine.Transform(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if isTerminal(err) && s.gen == gen && s.state == StateEditing {
			s.abortLocked(ctx, err)
		}
		return nil, err
	}
	if s.gen != gen || s.state != StateEditing {
		s.handles.Release(res.Handle)
		return nil, apperrors.InvalidState("edit session ended while the preview was rendering")
	}
	s.handles.Release(s.preview)
	s.preview = res.Handle
	return s.viewLocked(), nil
}

// Commit renders the edit, uploads it and replaces the asset in place. The
// session stays in saving for the whole round trip, refusing parameter
// changes. An upload failure returns the session to editing with every
// parameter kept; a decode or encode failure aborts the session and leaves
// the asset as it was.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	if err := s.requireEditing(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = StateSaving
	id := s.assetID
	req := s.requestLocked()
	s.mu.Unlock()

	meta, res, err := s.save(ctx, id, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if res != nil {
		s.handles.Release(res.Handle)
	}
	switch {
	case err == nil:
		commitsTotal.WithLabelValues("ok").Inc()
		s.logger.InfoContext(ctx, "edit committed",
			slog.String("asset_id", id),
			slog.String("remote_id", meta.RemoteID),
			slog.Float64("rotation", req.Rotation),
			slog.Int("width", res.Width),
			slog.Int("height", res.Height),
		)
		s.endLocked()
	case isTerminal(err):
		commitsTotal.WithLabelValues("aborted").Inc()
		s.abortLocked(ctx, err)
	case errors.Is(err, apperrors.ErrConflict):
		commitsTotal.WithLabelValues("conflict").Inc()
		s.abortLocked(ctx, err)
	default:
		commitsTotal.WithLabelValues("error").Inc()
		s.state = StateEditing
		s.logger.WarnContext(ctx, "edit commit failed; session kept open",
			slog.String("asset_id", id),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// save runs the render, upload and apply steps of a commit.
func (s *Session) save(ctx context.Context, id string, req transform.Request) (*domain.AssetMetadata, *transform.Result, error) {
	res, err := s.engine.Transform(ctx, req)
	if err != nil {
		if isTerminal(err) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("render edit: %w", err)
	}

	seq, err := s.list.MarkReuploading(ctx, id)
	if err != nil {
		return nil, res, err
	}

	meta, err := s.uploader.UploadAsset(ctx, res.Data, res.ContentType)
	if err != nil {
		if rerr := s.list.RevertReupload(context.WithoutCancel(ctx), id, seq); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to restore asset status",
				slog.String("asset_id", id),
				slog.String("error", rerr.Error()),
			)
		}
		return nil, res, err
	}

	if err := s.list.ApplyEdit(context.WithoutCancel(ctx), id, seq, res.ContentType, meta); err != nil {
		return nil, res, err
	}
	return meta, res, nil
}

// Cancel discards pending parameters and releases the preview. The asset is
// untouched. Cancelling an idle session is a no-op.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		return nil
	case StateSaving:
		return apperrors.InvalidState("edit is being saved")
	}
	id := s.assetID
	s.endLocked()
	return s.list.EndEdit(ctx, id)
}

// Close cancels an open session and refuses further use.
func (s *Session) Close(ctx context.Context) error {
	err := s.Cancel(ctx)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// View returns a snapshot of the session.
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.viewLocked()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Params returns the pending parameters, or false when no asset is open.
func (s *Session) Params() (Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.params, s.state != StateIdle
}

func (s *Session) requireEditing() error {
	if s.closed {
		return fmt.Errorf("edit session: %w", apperrors.ErrSessionClosed)
	}
	switch s.state {
	case StateIdle:
		return apperrors.InvalidState("no asset is being edited")
	case StateSaving:
		return apperrors.InvalidState("edit is being saved")
	}
	return nil
}

func (s *Session) requestLocked() transform.Request {
	return transform.Request{
		Source:   s.source,
		Crop:     s.params.Crop,
		Rotation: s.params.Rotation,
		Filters:  s.params.Filters,
		Owner:    s.assetID,
	}
}

func (s *Session) surfaceLocked() (int, int) {
	return transform.RotatedBounds(s.source.Width, s.source.Height, s.params.Rotation)
}

// recenterLocked rebuilds the crop for the current rotation, keeping the
// crop's aspect ratio and zoom.
func (s *Session) recenterLocked() transform.Rect {
	w, h := s.surfaceLocked()
	c := s.params.Crop
	aspect := s.aspect.Value()
	if !c.Empty() {
		aspect = float64(c.Width) / float64(c.Height)
	}
	full := transform.CenteredCrop(w, h, aspect)
	return transform.ScaleAround(full, 1/s.params.Zoom, w, h)
}

func (s *Session) abortLocked(ctx context.Context, cause error) {
	id := s.assetID
	s.endLocked()
	if err := s.list.EndEdit(context.WithoutCancel(ctx), id); err != nil {
		s.logger.ErrorContext(ctx, "failed to end edit reservation", slog.String("asset_id", id), slog.String("error", err.Error()))
	}
	s.logger.WarnContext(ctx, "edit session aborted",
		slog.String("asset_id", id),
		slog.String("error", cause.Error()),
	)
}

// endLocked returns the session to idle and releases the preview.
func (s *Session) endLocked() {
	s.handles.Release(s.preview)
	s.preview = ""
	s.state = StateIdle
	s.assetID = ""
	s.source = transform.Raster{}
	s.params = Params{}
	s.gen++
}

func (s *Session) viewLocked() *View {
	v := &View{State: s.state, AssetID: s.assetID, PreviewHandle: string(s.preview)}
	if s.state != StateIdle {
		p := s.params
		v.Params = &p
		v.SurfaceWidth, v.SurfaceHeight = s.surfaceLocked()
	}
	return v
}

// isTerminal reports whether err ends the session: the source or the
// result cannot be (de)serialized, so retrying with the same input is futile.
func isTerminal(err error) bool {
	return errors.Is(err, apperrors.ErrDecodeFailed) || errors.Is(err, apperrors.ErrEncodeFailed)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
