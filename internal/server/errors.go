package server

import (
	"errors"
	"net/http"

	"filehost/internal/upload"
)

const (
	msgNotFound     = "File Not Found!"
	msgInternal     = "Something went wrong"
	msgNotMultipart = "Invalid multipart request"
)

// statusFor maps an upload error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, upload.ErrFileTooBig), errors.Is(err, upload.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrInvalidKeyFormat), errors.Is(err, upload.ErrStorage):
		return http.StatusInternalServerError
	case errors.Is(err, upload.ErrMalformed),
		errors.Is(err, upload.ErrWrongKey),
		errors.Is(err, upload.ErrMissingKey),
		errors.Is(err, upload.ErrNoFiles):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the client-facing text for err. Unknown errors get a
// generic message so internals never leak.
func messageFor(err error) string {
	var ue *upload.Error
	if errors.As(err, &ue) && ue.Message != "" {
		return ue.Message
	}
	return msgInternal
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, messageFor(err), statusFor(err))
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, msgNotFound, http.StatusNotFound)
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
