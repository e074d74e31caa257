package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteTimeout_OutlastsUpload(t *testing.T) {
	tests := []struct {
		upload time.Duration
		want   time.Duration
	}{
		{30 * time.Second, 45 * time.Second},
		{2 * time.Minute, 2*time.Minute + 15*time.Second},
		{0, 15 * time.Second},
	}
	for _, tt := range tests {
		got := writeTimeout(tt.upload)
		assert.Equal(t, tt.want, got)
		assert.Greater(t, got, tt.upload, "a commit must be able to answer after its upload")
	}
}
