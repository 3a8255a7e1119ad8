package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	CallPrefix   = "\x00FDW:"
	ResultPrefix = "\x00FDW_RESULT:"
	ReadyPrefix  = "\x00FDW_READY"
	FrameSuffix  = "\x00"
)

// MessageType identifies a frame found in guest output.
type MessageType int

const (
	MessageNone MessageType = iota
	MessageCall
	MessageResult
	MessageReady
)

var prefixes = map[MessageType]string{
	MessageCall:   CallPrefix,
	MessageResult: ResultPrefix,
	MessageReady:  ReadyPrefix,
}

// Prefix returns the frame prefix for t.
func (t MessageType) Prefix() string { return prefixes[t] }

// FindNextMessage returns the index and type of the earliest frame start
// in content, or -1 and MessageNone.
func FindNextMessage(content string) (int, MessageType) {
	best, bestType := -1, MessageNone
	for t, prefix := range prefixes {
		if idx := strings.Index(content, prefix); idx != -1 && (best == -1 || idx < best) {
			best, bestType = idx, t
		}
	}
	return best, bestType
}

// ExtractMessage returns the payload of the frame starting at idx and the
// content after it. ok is false when the frame is not yet terminated.
func ExtractMessage(content string, idx int, prefix string) (payload, remaining string, ok bool) {
	start := idx + len(prefix)
	end := strings.Index(content[start:], FrameSuffix)
	if end == -1 {
		return "", content[idx:], false
	}
	return content[start : start+end], content[start+end+len(FrameSuffix):], true
}

// WriteReady announces that the guest is waiting for commands.
func WriteReady(w io.Writer) error {
	_, err := io.WriteString(w, ReadyPrefix+FrameSuffix)
	return err
}

// WriteCall frames a host function call.
func WriteCall(w io.Writer, req CallRequest) error {
	return writeFrame(w, CallPrefix, req)
}

// WriteResult frames the result of a command.
func WriteResult(w io.Writer, res Result) error {
	return writeFrame(w, ResultPrefix, res)
}

func writeFrame(w io.Writer, prefix string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	buf := make([]byte, 0, len(prefix)+len(data)+len(FrameSuffix))
	buf = append(buf, prefix...)
	buf = append(buf, data...)
	buf = append(buf, FrameSuffix...)
	_, err = w.Write(buf)
	return err
}

// WriteLine writes v as one line of JSON.
func WriteLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode line: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
