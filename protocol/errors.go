package protocol

import (
	"errors"

	"github.com/caffeineduck/webfdw/fdw"
	"github.com/caffeineduck/webfdw/version"
)

// Error kinds carried across the sandbox boundary.
const (
	KindFetch       = "fetch"
	KindDecode      = "decode"
	KindOption      = "option"
	KindUnsupported = "unsupported"
	KindNotActive   = "not_active"
	KindVersion     = "version"
	KindInternal    = "internal"
)

// Error is a guest error in transit. Err rebuilds the typed error on the
// host so callers can use errors.As as if the wrapper ran in-process.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`

	URL    string              `json:"url,omitempty"`
	Status int                 `json:"status,omitempty"`
	Decode fdw.DecodeErrorKind `json:"decode,omitempty"`
	Record int                 `json:"record"`
	Column string              `json:"column,omitempty"`
	Option string              `json:"option,omitempty"`
	Reason string              `json:"reason,omitempty"`
	Op     string              `json:"op,omitempty"`

	Host        string `json:"host,omitempty"`
	Requirement string `json:"requirement,omitempty"`
}

// FromError encodes err for transport. It returns nil for a nil error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var (
		fe *fdw.FetchError
		de *fdw.DecodeError
		oe *fdw.OptionError
		ue *fdw.UnsupportedError
		me *version.MismatchError
	)
	switch {
	case errors.As(err, &fe):
		return &Error{Kind: KindFetch, URL: fe.URL, Status: fe.Status, Message: message(fe.Err)}
	case errors.As(err, &de):
		return &Error{Kind: KindDecode, Decode: de.Kind, Record: de.Record, Column: de.Column, Message: message(de.Err)}
	case errors.As(err, &oe):
		return &Error{Kind: KindOption, Option: oe.Option, Reason: oe.Reason}
	case errors.As(err, &ue):
		return &Error{Kind: KindUnsupported, Op: ue.Op}
	case errors.Is(err, fdw.ErrUnsupported):
		return &Error{Kind: KindUnsupported, Message: err.Error()}
	case errors.Is(err, fdw.ErrScanNotActive):
		return &Error{Kind: KindNotActive}
	case errors.As(err, &me):
		return &Error{Kind: KindVersion, Host: me.Host, Requirement: me.Requirement}
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}

// Err returns the typed error e describes.
func (e *Error) Err() error {
	if e == nil {
		return nil
	}

	switch e.Kind {
	case KindFetch:
		return &fdw.FetchError{URL: e.URL, Status: e.Status, Err: errorOrNil(e.Message)}
	case KindDecode:
		return &fdw.DecodeError{Kind: e.Decode, Record: e.Record, Column: e.Column, Err: errorOrNil(e.Message)}
	case KindOption:
		return &fdw.OptionError{Option: e.Option, Reason: e.Reason}
	case KindUnsupported:
		if e.Op == "" {
			return fdw.ErrUnsupported
		}
		return &fdw.UnsupportedError{Op: e.Op}
	case KindNotActive:
		return fdw.ErrScanNotActive
	case KindVersion:
		return &version.MismatchError{Host: e.Host, Requirement: e.Requirement}
	}
	if e.Message == "" {
		return errors.New("guest error")
	}
	return errors.New(e.Message)
}

func message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func errorOrNil(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
