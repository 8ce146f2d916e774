package upload

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is. Every error returned by Ingest wraps exactly one.
var (
	ErrMalformed        = errors.New("malformed multipart body")
	ErrWrongKey         = errors.New("wrong key")
	ErrMissingKey       = errors.New("missing key")
	ErrInvalidKeyFormat = errors.New("invalid key format")
	ErrFileTooBig       = errors.New("file too big")
	ErrBodyTooLarge     = errors.New("request body too large")
	ErrNoFiles          = errors.New("no files uploaded")
	ErrStorage          = errors.New("storage failure")
)

// Error carries the message shown to the client and, for size errors, the
// stored name of the offending file.
type Error struct {
	Kind    error
	Message string
	File    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func fileTooBig(name string) *Error {
	return &Error{
		Kind:    ErrFileTooBig,
		Message: fmt.Sprintf("File %s is too big!", name),
		File:    name,
	}
}
