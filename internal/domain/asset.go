package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role is the structural purpose of an image within a product listing.
type Role string

const (
	RoleCover     Role = "cover"
	RoleThumbnail Role = "thumbnail"
	RoleGallery   Role = "gallery"
)

// RoleCapacity returns how many assets may hold the role at once.
// A negative value means the role is unbounded.
func RoleCapacity(r Role) int {
	switch r {
	case RoleCover:
		return 1
	case RoleThumbnail:
		return 2
	default:
		return -1
	}
}

// IsValidRole checks whether the given role is one of the known roles.
func IsValidRole(r Role) bool {
	return r == RoleCover || r == RoleThumbnail || r == RoleGallery
}

// PositionalRole derives a role from an index in the ordered list:
// positions 0 and 1 are thumbnails, position 2 is the cover, the rest are gallery images.
func PositionalRole(index int) Role {
	switch index {
	case 0, 1:
		return RoleThumbnail
	case 2:
		return RoleCover
	default:
		return RoleGallery
	}
}

// Status is the upload lifecycle state of an asset.
type Status string

const (
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// ImageAsset is one image belonging to a product draft.
type ImageAsset struct {
	ID           string    `json:"id"`
	RemoteID     string    `json:"remote_id,omitempty"`
	LocalHandle  string    `json:"local_handle,omitempty"`
	URL          string    `json:"url,omitempty"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Format       string    `json:"format,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	ByteSize     int64     `json:"byte_size"`
	OriginalName string    `json:"original_name,omitempty"`
	Status       Status    `json:"status"`
	Role         Role      `json:"role"`
	Pinned       bool      `json:"pinned"`
	LastError    string    `json:"last_error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// SourceHandle returns the authoritative reference to the asset's pixels:
// the local handle while one is held, the remote URL otherwise.
func (a *ImageAsset) SourceHandle() string {
	if a.LocalHandle != "" {
		return a.LocalHandle
	}
	return a.URL
}

// IsLocal reports whether the pixels are currently backed by a local handle.
func (a *ImageAsset) IsLocal() bool {
	return a.LocalHandle != ""
}

// ApplyMetadata merges metadata returned by the asset store into the asset.
func (a *ImageAsset) ApplyMetadata(m *AssetMetadata) {
	a.RemoteID = m.RemoteID
	a.URL = m.URL
	if m.Width > 0 {
		a.Width = m.Width
	}
	if m.Height > 0 {
		a.Height = m.Height
	}
	if m.Format != "" {
		a.Format = m.Format
	}
	if m.ByteSize > 0 {
		a.ByteSize = m.ByteSize
	}
	a.UploadedAt = m.UploadedAt
}

// AssetMetadata is what the remote asset store returns for a stored object.
type AssetMetadata struct {
	RemoteID   string    `json:"remote_id"`
	URL        string    `json:"url"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Format     string    `json:"format"`
	ByteSize   int64     `json:"byte_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// RawFile is a file selected by the user, before admission.
type RawFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload size in bytes.
func (f RawFile) Size() int64 {
	return int64(len(f.Data))
}

// SubmittedAsset is one entry of the ordered list handed to the product form.
type SubmittedAsset struct {
	RemoteID   string    `json:"remote_id"`
	URL        string    `json:"url"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Format     string    `json:"format"`
	ByteSize   int64     `json:"byte_size"`
	UploadedAt time.Time `json:"uploaded_at"`
	Role       Role      `json:"role"`
}

// Submission is the media part of a product save.
type Submission struct {
	Assets           []SubmittedAsset `json:"assets"`
	DeletedRemoteIDs []string         `json:"deleted_remote_ids"`
}

// AspectRatio is a width:height ratio used for the default crop.
type AspectRatio struct {
	Width  int
	Height int
}

// Value returns the ratio as width / height.
func (a AspectRatio) Value() float64 {
	if a.Height == 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

func (a AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", a.Width, a.Height)
}

// ParseAspectRatio parses a "W:H" string such as "4:3".
func ParseAspectRatio(s string) (AspectRatio, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q must look like W:H", s)
	}
	wi, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || wi <= 0 {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q has an invalid width", s)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || hi <= 0 {
		return AspectRatio{}, fmt.Errorf("aspect ratio %q has an invalid height", s)
	}
	return AspectRatio{Width: wi, Height: hi}, nil
}
