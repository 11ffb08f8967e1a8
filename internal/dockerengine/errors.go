package dockerengine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies engine failures so the update engine can decide
// whether to retry, abandon, or treat a failure as fatal (spec §7).
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotFound
	KindConflict
	KindAuth
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	default:
		return "other"
	}
}

// EngineError wraps an underlying Docker API error with a classification.
type EngineError struct {
	Kind ErrorKind
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("dockerengine: %s: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// classify inspects an error returned by the Docker client and assigns it
// a Kind. The Docker HTTP API client does not export typed sentinel errors
// for every case the way errdefs does, so this falls back to matching on
// the error string for statuses errdefs does not wrap.
func classify(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such container"), strings.Contains(msg, "no such image"), strings.Contains(msg, "not found"):
		return &EngineError{Kind: KindNotFound, Err: err}
	case strings.Contains(msg, "conflict"), strings.Contains(msg, "already in use"), strings.Contains(msg, "already exists"):
		return &EngineError{Kind: KindConflict, Err: err}
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "authentication required"), strings.Contains(msg, "403"):
		return &EngineError{Kind: KindAuth, Err: err}
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "timeout"), strings.Contains(msg, "eof"):
		return &EngineError{Kind: KindTransport, Err: err}
	default:
		return &EngineError{Kind: KindOther, Err: err}
	}
}

// IsNotFound reports whether err denotes a missing container or image.
func IsNotFound(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Kind == KindNotFound
}
