package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleRequest struct {
	Role     string `json:"role" validate:"required,oneof=cover thumbnail gallery"`
	Position int    `json:"position" validate:"gte=0,lte=63"`
}

type editorRequest struct {
	Aspect string  `json:"aspect" validate:"required,aspect_ratio"`
	Zoom   float64 `json:"zoom" validate:"gte=1,lte=3"`
}

type plainStruct struct {
	Name  string `validate:"required"`
	Short string `validate:"omitempty,min=3"`
	ID    string `validate:"omitempty,uuid"`
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(roleRequest{Role: "cover", Position: 2}))
	assert.NoError(t, Validate(editorRequest{Aspect: "16:9", Zoom: 1.5}))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	fields := fieldsOf(t, Validate(roleRequest{Role: "banner", Position: 2}))
	assert.Contains(t, fields["role"], "must be one of")
}

func TestValidate_FallsBackToStructFieldNames(t *testing.T) {
	fields := fieldsOf(t, Validate(plainStruct{}))
	assert.Equal(t, "is required", fields["Name"])
}

func TestValidate_Range(t *testing.T) {
	fields := fieldsOf(t, Validate(editorRequest{Aspect: "4:3", Zoom: 4}))
	assert.Equal(t, "must be less than or equal to 3", fields["zoom"])
}

func TestValidate_AspectRatio(t *testing.T) {
	fields := fieldsOf(t, Validate(editorRequest{Aspect: "wide", Zoom: 1}))
	assert.Equal(t, "must be an aspect ratio such as 4:3", fields["aspect"])
}

func TestIsAspectRatio(t *testing.T) {
	assert.True(t, IsAspectRatio("4:3"))
	assert.True(t, IsAspectRatio("1:1"))
	assert.False(t, IsAspectRatio("4:0"))
	assert.False(t, IsAspectRatio("-4:3"))
	assert.False(t, IsAspectRatio("4x3"))
	assert.False(t, IsAspectRatio(""))
}

func TestValidate_MinAndUUID(t *testing.T) {
	fields := fieldsOf(t, Validate(plainStruct{Name: "a", Short: "ab", ID: "nope"}))
	assert.Equal(t, "must be at least 3", fields["Short"])
	assert.Equal(t, "must be a valid UUID", fields["ID"])
}

func TestValidationError_ErrorString(t *testing.T) {
	err := Validate(plainStruct{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'Name' is required")
}

func TestDecodeAndValidate_Success(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"role":"thumbnail","position":1}`))

	var r roleRequest
	require.NoError(t, DecodeAndValidate(req, &r))
	assert.Equal(t, "thumbnail", r.Role)
	assert.Equal(t, 1, r.Position)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))

	var r roleRequest
	err := DecodeAndValidate(req, &r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_UnknownField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"role":"cover","pinned":true}`))

	var r roleRequest
	err := DecodeAndValidate(req, &r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_ValidationFails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"role":""}`))

	var r roleRequest
	err := DecodeAndValidate(req, &r)
	require.Error(t, err)
	var valErr *ValidationError
	assert.ErrorAs(t, err, &valErr)
}
