package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"filehost/internal/upload"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind error
		want int
	}{
		{upload.ErrMalformed, http.StatusBadRequest},
		{upload.ErrWrongKey, http.StatusBadRequest},
		{upload.ErrMissingKey, http.StatusBadRequest},
		{upload.ErrNoFiles, http.StatusBadRequest},
		{upload.ErrFileTooBig, http.StatusRequestEntityTooLarge},
		{upload.ErrBodyTooLarge, http.StatusRequestEntityTooLarge},
		{upload.ErrInvalidKeyFormat, http.StatusInternalServerError},
		{upload.ErrStorage, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(&upload.Error{Kind: tt.kind, Message: "m"}))
		})
	}
}

func TestWriteError_HidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(rec, errors.New("open /var/files/secret: permission denied"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgInternal, strings.TrimSpace(rec.Body.String()))
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
}
