// Package httpstore stores product images through a remote media REST API
// (multipart POST /api/v1/media, DELETE /api/v1/media/{id}).
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"

	apperrors "github.com/utafrali/EcommerceGo/mediapipeline/pkg/errors"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/mediapipeline/internal/storage"
)

const serviceName = "media-api"

// Config holds the remote media API settings.
type Config struct {
	BaseURL   string `env:"BASE_URL" envDefault:"http://localhost:8011"`
	OwnerType string `env:"OWNER_TYPE" envDefault:"product"`
	OwnerID   string `env:"OWNER_ID" envDefault:"media-pipeline"`
}

// Doer executes HTTP requests. *httpclient.CircuitBreakerClient satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Storage implements storage.Storage on top of the media API.
type Storage struct {
	client Doer
	cfg    Config
	logger *slog.Logger
}

// New creates an HTTP-backed store.
func New(client Doer, cfg Config, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Storage{client: client, cfg: cfg, logger: logger}
}

// mediaFile is the subset of the media API resource the store reads.
type mediaFile struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type envelope struct {
	Data *mediaFile `json:"data"`
}

// Upload posts the payload as multipart/form-data. The API assigns the key.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	body, contentType, err := s.multipartBody(input)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", input.Key, err)
	}
	file, err := decodeMedia(resp)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", input.Key, err)
	}

	s.logger.DebugContext(ctx, "media uploaded to remote api",
		slog.String("key", input.Key),
		slog.String("media_id", file.ID),
	)
	return &storage.UploadResult{Key: file.ID, URL: file.URL}, nil
}

// multipartBody buffers the form so retries can replay it.
func (s *Storage) multipartBody(input *storage.UploadInput) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	_ = mw.WriteField("owner_type", s.cfg.OwnerType)
	_ = mw.WriteField("owner_id", s.cfg.OwnerID)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(input.Key)))
	h.Set("Content-Type", input.ContentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, input.Data); err != nil {
		return nil, "", fmt.Errorf("copy upload payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// Delete removes a media resource by ID.
func (s *Storage) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.endpoint(key), http.NoBody)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}

// GetURL looks the resource up and returns its public URL.
func (s *Storage) GetURL(ctx context.Context, key string) (string, error) {
	file, err := s.get(ctx, key)
	if err != nil {
		return "", err
	}
	return file.URL, nil
}

// Open resolves the resource and downloads its bytes from the public URL.
func (s *Storage) Open(ctx context.Context, key string) (*storage.Object, error) {
	file, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	if resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = file.ContentType
	}
	return &storage.Object{Body: resp.Body, ContentType: contentType, Size: resp.ContentLength}, nil
}

// Ping checks that the media API answers its liveness probe.
func (s *Storage) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/health/live", http.NoBody)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("media api ping: %w", err)
	}
	if resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_ = resp.Body.Close()
	return nil
}

func (s *Storage) get(ctx context.Context, key string) (*mediaFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(key), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create get request: %w", err)
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return decodeMedia(resp)
}

func (s *Storage) endpoint(id ...string) string {
	u := s.cfg.BaseURL + "/api/v1/media"
	if len(id) > 0 {
		u += "/" + url.PathEscape(id[0])
	}
	return u
}

func decodeMedia(resp *http.Response) (*mediaFile, error) {
	if resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	if env.Data == nil || env.Data.ID == "" {
		return nil, apperrors.Internal(fmt.Errorf("%s response has no media id", serviceName))
	}
	return env.Data, nil
}
