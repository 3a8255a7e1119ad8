package fdw

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is wrapped by every write-path contract call.
	ErrUnsupported = errors.New("operation not supported on a read-only source")

	// ErrScanNotActive is returned by IterScan outside a begin/end bracket.
	ErrScanNotActive = errors.New("scan not active")
)

// FetchError reports a failed request to the remote API: a transport
// failure from the host capability, a non-2xx status, or a malformed header.
type FetchError struct {
	URL    string
	Status int // zero when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeErrorKind classifies a DecodeError.
type DecodeErrorKind uint8

const (
	MalformedBody DecodeErrorKind = iota + 1
	TypeMismatch
	InvalidTimestamp
	MissingColumn
)

var decodeKindNames = map[DecodeErrorKind]string{
	MalformedBody:    "malformed_body",
	TypeMismatch:     "type_mismatch",
	InvalidTimestamp: "invalid_timestamp",
	MissingColumn:    "missing_column",
}

func (k DecodeErrorKind) String() string {
	if s, ok := decodeKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("decode_kind(%d)", uint8(k))
}

func (k DecodeErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *DecodeErrorKind) UnmarshalText(text []byte) error {
	for kind, name := range decodeKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown decode error kind %q", text)
}

// DecodeError reports a page body that could not be projected onto the
// declared columns. Record is the zero-based record index, or -1 when the
// whole body is at fault.
type DecodeError struct {
	Kind   DecodeErrorKind
	Record int
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Record >= 0 {
		msg += fmt.Sprintf(" record %d", e.Record)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// OptionError reports a missing or malformed table option.
type OptionError struct {
	Option string
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("invalid option %q: %s", e.Option, e.Reason)
}

// UnsupportedError is returned by write-path contract calls.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return e.Op + ": " + ErrUnsupported.Error()
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }
