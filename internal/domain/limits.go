package domain

import "time"

// Default limits applied when no configuration overrides them.
const (
	DefaultMaxAssets         = 8
	DefaultMaxBytesPerAsset  = int64(5 * 1024 * 1024)
	DefaultUploadConcurrency = 4
	DefaultUploadTimeout     = 30 * time.Second
)

// DefaultAllowedMimeTypes are the content types accepted for product images.
var DefaultAllowedMimeTypes = []string{"image/jpeg", "image/png", "image/webp"}

// DefaultAspectRatio is the crop ratio used when an edit session opens.
var DefaultAspectRatio = AspectRatio{Width: 4, Height: 3}

// RolePolicy controls how manual role overrides interact with positional
// recomputation after reorders and removals.
type RolePolicy string

const (
	// RolePolicyPositional recomputes every role from position, discarding
	// manual overrides.
	RolePolicyPositional RolePolicy = "positional"
	// RolePolicySticky keeps manually assigned roles across reorders and removals.
	RolePolicySticky RolePolicy = "sticky"
)

// Limits is the admission and role configuration of a media asset list.
type Limits struct {
	MaxAssets         int
	MaxBytesPerAsset  int64
	AllowedMimeTypes  []string
	AspectRatio       AspectRatio
	RolePolicy        RolePolicy
	UploadConcurrency int
	UploadTimeout     time.Duration
}

// DefaultLimits returns the stock pipeline configuration.
func DefaultLimits() Limits {
	return Limits{
		MaxAssets:         DefaultMaxAssets,
		MaxBytesPerAsset:  DefaultMaxBytesPerAsset,
		AllowedMimeTypes:  append([]string(nil), DefaultAllowedMimeTypes...),
		AspectRatio:       DefaultAspectRatio,
		RolePolicy:        RolePolicyPositional,
		UploadConcurrency: DefaultUploadConcurrency,
		UploadTimeout:     DefaultUploadTimeout,
	}
}

// WithDefaults fills zero fields with their default values.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxAssets <= 0 {
		l.MaxAssets = d.MaxAssets
	}
	if l.MaxBytesPerAsset <= 0 {
		l.MaxBytesPerAsset = d.MaxBytesPerAsset
	}
	if len(l.AllowedMimeTypes) == 0 {
		l.AllowedMimeTypes = d.AllowedMimeTypes
	}
	if l.AspectRatio.Value() <= 0 {
		l.AspectRatio = d.AspectRatio
	}
	if l.RolePolicy == "" {
		l.RolePolicy = d.RolePolicy
	}
	if l.UploadConcurrency <= 0 {
		l.UploadConcurrency = d.UploadConcurrency
	}
	if l.UploadTimeout <= 0 {
		l.UploadTimeout = d.UploadTimeout
	}
	return l
}

// IsAllowedContentType checks whether the given content type is allowed.
func (l Limits) IsAllowedContentType(contentType string) bool {
	for _, t := range l.AllowedMimeTypes {
		if t == contentType {
			return true
		}
	}
	return false
}
