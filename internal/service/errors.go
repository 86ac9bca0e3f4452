package service

import (
	"errors"

	"fileserver/internal/storage"
)

// Kind classifies a request failure. Every error leaving the service
// carries exactly one kind so the transport can map it to a stable
// response code without inspecting internals.
type Kind int

const (
	KindNone Kind = iota
	// KindAuth: missing or invalid credential. The message never
	// distinguishes a wrong password from no password configured.
	KindAuth
	// KindValidation: oversized file, disallowed type, bad input.
	KindValidation
	// KindInvalidName: target name failed sanitation.
	KindInvalidName
	// KindNotFound: no stored file under the target name.
	KindNotFound
	// KindStorage: backing-store I/O failure.
	KindStorage
)

// Error is the service-level error. Message is stable and safe to
// show to clients; the wrapped cause is for logs only and may contain
// paths or driver detail that must never reach a response body.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

func errAuth() *Error {
	return &Error{Kind: KindAuth, Message: "invalid password"}
}

func errValidation(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: msg, cause: cause}
}

func errInvalidName(cause error) *Error {
	return &Error{Kind: KindInvalidName, Message: "invalid file name", cause: cause}
}

func errNotFound() *Error {
	return &Error{Kind: KindNotFound, Message: "file not found"}
}

func errStorage(cause error) *Error {
	return &Error{Kind: KindStorage, Message: "storage error", cause: cause}
}

// fromStorage translates engine sentinels into the service taxonomy.
func fromStorage(err error) *Error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errNotFound()
	case errors.Is(err, storage.ErrTooLarge):
		return errValidation("file too large", err)
	case errors.Is(err, storage.ErrTypeNotAllowed):
		return errValidation("file type not allowed", err)
	case errors.Is(err, storage.ErrInvalidName):
		return errInvalidName(err)
	default:
		return errStorage(err)
	}
}

// KindOf returns the kind of a service error, or KindNone for other
// errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}
