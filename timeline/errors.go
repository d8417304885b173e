package timeline

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPersistedFormat   = errors.New("invalid persisted format")
	ErrUnsupportedVersion       = errors.New("unsupported version")
	ErrCorruptFieldValue        = errors.New("corrupt field value")
	ErrUnknownFunctionReference = errors.New("unknown function reference")
	ErrNameTooLong              = errors.New("name too long")
)

// LoadError reports where a load failed. Kind is one of the Err* sentinels
// above; Err is the underlying cause and may be nil.
type LoadError struct {
	File string
	Path string
	Kind error
	Err  error
}

func (e *LoadError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s at %s", msg, e.Path)
	}
	if e.File != "" {
		msg = e.File + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func loadErr(kind error, path string, err error) *LoadError {
	return &LoadError{Path: path, Kind: kind, Err: err}
}
