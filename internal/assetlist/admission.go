package assetlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/domain"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/ledger"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/transform"
	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
)

// Rejection describes one file that was not admitted.
type Rejection struct {
	Name    string `json:"name"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// AdmissionReport is the batch-level outcome of AddFiles.
type AdmissionReport struct {
	Admitted []domain.ImageAsset `json:"admitted"`
	Rejected []Rejection         `json:"rejected"`
	// Dropped counts valid files that did not fit under the asset limit.
	Dropped   int `json:"dropped"`
	MaxAssets int `json:"max_assets"`

	droppedErr error
}

// Err joins every rejection and the capacity error, or returns nil when the
// whole batch was admitted.
func (r *AdmissionReport) Err() error {
	errs := make([]error, 0, len(r.Rejected)+1)
	for _, rej := range r.Rejected {
		errs = append(errs, rej.Err)
	}
	if r.droppedErr != nil {
		errs = append(errs, r.droppedErr)
	}
	return errors.Join(errs...)
}

func reject(name string, err *apperrors.AppError) Rejection {
	return Rejection{Name: name, Code: err.Code, Message: err.Message, Err: err}
}

type dedupKey struct {
	name string
	size int64
}

func newAssetID() string {
	return uuid.New().String()
}

// AddFiles validates a batch and admits the accepted files. Each admitted
// file becomes an uploading asset with a local preview handle and a
// positional role, and its upload starts in the background. The batch
// outcome is reported, never returned as an error; the error result is only
// set when the list itself refused the call.
func (l *List) AddFiles(ctx context.Context, files []domain.RawFile) (*AdmissionReport, error) {
	report := &AdmissionReport{
		Admitted:  []domain.ImageAsset{},
		Rejected:  []Rejection{},
		MaxAssets: l.limits.MaxAssets,
	}

	// Sniffing and header decoding read no list state, so they run before
	// the batch enters the queue.
	checked := make([]candidate, len(files))
	for i, f := range files {
		checked[i] = l.inspect(ctx, f)
	}

	err := l.do(ctx, func() error {
		if err := l.mutable(); err != nil {
			return err
		}

		seen := make(map[dedupKey]struct{}, len(l.records)+len(files))
		for _, r := range l.records {
			seen[dedupKey{r.asset.OriginalName, r.asset.ByteSize}] = struct{}{}
		}

		start := len(l.records)
		for _, c := range checked {
			f := c.file
			if c.rejection != nil {
				report.Rejected = append(report.Rejected, *c.rejection)
				continue
			}
			key := dedupKey{f.Name, f.Size()}
			if _, dup := seen[key]; dup {
				report.Rejected = append(report.Rejected, reject(f.Name, apperrors.Duplicate(f.Name, f.Size())))
				continue
			}
			if len(l.records) >= l.limits.MaxAssets {
				report.Dropped++
				continue
			}
			seen[key] = struct{}{}
			l.records = append(l.records, l.admit(c))
		}

		assignNew(l.records, start)
		for _, r := range l.records[start:] {
			report.Admitted = append(report.Admitted, r.asset)
			l.startUpload(ctx, r)
			l.emit(Event{Type: EventAdmitted, AssetID: r.asset.ID})
		}
		if report.Dropped > 0 {
			report.droppedErr = apperrors.Capacity(report.Dropped, l.limits.MaxAssets)
		}

		l.logger.InfoContext(ctx, "file batch processed",
			slog.Int("files", len(files)),
			slog.Int("admitted", len(report.Admitted)),
			slog.Int("rejected", len(report.Rejected)),
			slog.Int("dropped", report.Dropped),
			slog.Int("total", len(l.records)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// candidate is a file checked outside the list goroutine.
type candidate struct {
	file        domain.RawFile
	contentType string
	info        *transform.Info
	rejection   *Rejection
}

// inspect sniffs the content type from the bytes and checks type and size
// limits. A declared type must agree with the sniffed one; the sniffed type
// is the one stored and uploaded.
func (l *List) inspect(ctx context.Context, f domain.RawFile) candidate {
	c := candidate{file: f}
	detected := mimetype.Detect(f.Data)
	if rej, ok := l.validate(f, detected); !ok {
		c.rejection = &rej
		return c
	}
	c.contentType = detected.String()

	info, err := transform.ReadInfo(f.Data)
	if err != nil {
		l.logger.DebugContext(ctx, "could not read image header",
			slog.String("name", f.Name),
			slog.String("error", err.Error()),
		)
		return c
	}
	c.info = info
	return c
}

func (l *List) validate(f domain.RawFile, detected *mimetype.MIME) (Rejection, bool) {
	switch {
	case f.Size() == 0:
		return reject(f.Name, apperrors.Validation(fmt.Sprintf("file %q is empty", f.Name))), false
	case f.ContentType != "" && !detected.Is(f.ContentType):
		return reject(f.Name, apperrors.Validation(fmt.Sprintf(
			"file %q is declared as %q but its content is %q", f.Name, f.ContentType, detected.String()))), false
	case !l.limits.IsAllowedContentType(detected.String()):
		return reject(f.Name, apperrors.Validation(fmt.Sprintf("file %q has unsupported type %q", f.Name, detected.String()))), false
	case f.Size() > l.limits.MaxBytesPerAsset:
		return reject(f.Name, apperrors.Validation(fmt.Sprintf(
			"file %q is %d bytes; the limit is %d", f.Name, f.Size(), l.limits.MaxBytesPerAsset))), false
	}
	return Rejection{}, true
}

// admit builds the record for an accepted file and mints its preview handle.
func (l *List) admit(c candidate) *record {
	id := newAssetID()
	a := domain.ImageAsset{
		ID:           id,
		ContentType:  c.contentType,
		ByteSize:     c.file.Size(),
		OriginalName: c.file.Name,
		Status:       domain.StatusUploading,
		Role:         domain.RoleGallery,
		CreatedAt:    time.Now().UTC(),
	}
	if c.info != nil {
		a.Width, a.Height, a.Format = c.info.Width, c.info.Height, c.info.Format
	}
	a.LocalHandle = string(l.handles.Create(id, c.file.Data, c.contentType))
	return &record{asset: a}
}

// startUpload must run on the list goroutine. The upload keeps the values of
// ctx (trace, correlation id) but not its cancellation; Close cancels it.
func (l *List) startUpload(ctx context.Context, r *record) {
	data, ct, err := l.handles.Open(ledger.Handle(r.asset.LocalHandle))
	if err != nil {
		l.fail(r, err)
		return
	}

	l.nextSeq++
	r.seq = l.nextSeq
	id, seq := r.asset.ID, r.seq

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		upCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(l.ctx, cancel)
		defer stop()

		select {
		case l.sem <- struct{}{}:
		case <-upCtx.Done():
			l.complete(upCtx, id, seq, nil, upCtx.Err())
			return
		}
		meta, err := l.uploader.UploadAsset(upCtx, data, ct)
		<-l.sem
		l.complete(upCtx, id, seq, meta, err)
	}()
}

// complete applies an upload outcome. Results for removed assets or for a
// superseded upload are discarded and their remote object is queued for
// deletion.
func (l *List) complete(ctx context.Context, id string, seq uint64, meta *domain.AssetMetadata, uploadErr error) {
	err := l.do(context.WithoutCancel(ctx), func() error {
		defer l.settle()

		_, r := l.find(id)
		if r == nil || r.seq != seq || r.asset.Status != domain.StatusUploading {
			if meta != nil {
				l.addDeleted(meta.RemoteID)
				l.emit(Event{Type: EventOrphaned, AssetID: id})
				l.logger.InfoContext(ctx, "discarded stale upload result",
					slog.String("asset_id", id),
					slog.String("remote_id", meta.RemoteID),
				)
			}
			return nil
		}

		if uploadErr != nil {
			l.fail(r, uploadErr)
			l.logger.WarnContext(ctx, "asset upload failed",
				slog.String("asset_id", id),
				slog.String("error", uploadErr.Error()),
			)
			return nil
		}

		l.handles.Release(ledger.Handle(r.asset.LocalHandle))
		r.asset.LocalHandle = ""
		r.asset.ApplyMetadata(meta)
		r.asset.Status = domain.StatusDone
		r.asset.LastError = ""
		l.emit(Event{Type: EventUploaded, AssetID: id})
		return nil
	})
	if err != nil && meta != nil {
		l.logger.WarnContext(ctx, "upload finished after list closed",
			slog.String("asset_id", id),
			slog.String("remote_id", meta.RemoteID),
		)
	}
}

// fail moves an uploading asset to the error state, keeping its local handle.
func (l *List) fail(r *record, err error) {
	r.asset.Status = domain.StatusError
	r.asset.LastError = err.Error()
	l.emit(Event{Type: EventUploadFailed, AssetID: r.asset.ID, Err: err})
}

// Retry restarts the upload of an asset in the error state from its
// retained local handle.
func (l *List) Retry(ctx context.Context, id string) error {
	return l.do(ctx, func() error {
		if err := l.mutable(); err != nil {
			return err
		}
		_, r := l.find(id)
		if r == nil {
			return apperrors.NotFound("asset", id)
		}
		if r.asset.Status != domain.StatusError {
			return apperrors.InvalidState(fmt.Sprintf("asset %s is %s; only failed uploads can be retried", id, r.asset.Status))
		}
		if r.editing {
			return apperrors.Busy(fmt.Sprintf("asset %s is being edited", id))
		}
		if r.asset.LocalHandle == "" {
			return apperrors.InvalidState(fmt.Sprintf("asset %s has no local copy to upload", id))
		}

		r.asset.Status = domain.StatusUploading
		r.asset.LastError = ""
		l.startUpload(ctx, r)
		l.logger.InfoContext(ctx, "asset upload retried", slog.String("asset_id", id))
		return nil
	})
}
