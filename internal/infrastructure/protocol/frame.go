// Package protocol implements the framed JSON-over-message-stream codec
// from spec §4.5: fixed 4-field envelopes with a string-encoded payload.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Type and status codes from spec §6.1.
const (
	TypeLogin               = 100
	TypeGetUserData         = 101
	TypeListPipelines       = 102
	TypeExecuteFromDB       = 103
	TypeExecuteFromPayload  = 104
	TypeStopExecution       = 106
	TypeRequestOutput       = 107

	StatusLoginOK           = 200
	StatusLoginError        = 300
	StatusUserDataOK        = 201
	StatusUserDataError     = 301
	StatusPipelineListOK    = 202
	StatusPipelineListError = 302
	StatusExecuteDBOK       = 203
	StatusExecuteDBError    = 303
	StatusExecutePayloadOK    = 204
	StatusExecutePayloadError = 304
	StatusNodeSuccess       = 205
	StatusNodeError         = 305
	StatusStopOK            = 206
	StatusStopError         = 306
	StatusPipelineFinishedOK    = 207
	StatusPipelineFinishedError = 307

	StatusMessageIDError    = 395
	StatusUnknownType       = 396
	StatusTooManyExecutions = 397
	StatusExecutionsHalted  = 398
	StatusMaintenanceMode   = 399
)

// Error is a protocol-level failure: the frame could not be parsed, or
// failed envelope validation, carrying the error code the caller should
// respond with.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

func newError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Frame is one parsed envelope: {id, requestId, type, content}. Content is
// the already-decoded payload object; on the wire it travels as a JSON
// string (spec §4.5).
type Frame struct {
	ID        int
	RequestID int
	Type      int
	Content   map[string]any
}

// wireFrame mirrors the exact wire schema before content is decoded.
type wireFrame struct {
	ID        json.Number `json:"id"`
	RequestID json.Number `json:"requestId"`
	Type      json.Number `json:"type"`
	Content   *string     `json:"content"`
}

// Parse decodes raw bytes into a Frame. Parsing is strict: missing
// fields, non-integer header fields, or a non-string content field fail
// with a protocol Error (spec §4.5).
func Parse(raw []byte) (*Frame, error) {
	var wire wireFrame
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, newError(StatusUnknownType, "malformed json: %v", err)
	}

	if wire.ID == "" {
		return nil, newError(StatusUnknownType, "missing field \"id\"")
	}
	if wire.RequestID == "" {
		return nil, newError(StatusUnknownType, "missing field \"requestId\"")
	}
	if wire.Type == "" {
		return nil, newError(StatusUnknownType, "missing field \"type\"")
	}
	if wire.Content == nil {
		return nil, newError(StatusUnknownType, "missing field \"content\"")
	}

	id, err := wire.ID.Int64()
	if err != nil {
		return nil, newError(StatusUnknownType, "field \"id\" must be an integer")
	}
	if id < 1 {
		return nil, newError(StatusUnknownType, "field \"id\" must be >= 1")
	}
	requestID, err := wire.RequestID.Int64()
	if err != nil {
		return nil, newError(StatusUnknownType, "field \"requestId\" must be an integer")
	}
	typeCode, err := wire.Type.Int64()
	if err != nil {
		return nil, newError(StatusUnknownType, "field \"type\" must be an integer")
	}

	var content map[string]any
	if err := json.Unmarshal([]byte(*wire.Content), &content); err != nil {
		return nil, newError(StatusUnknownType, "field \"content\" is not valid JSON: %v", err)
	}

	return &Frame{
		ID:        int(id),
		RequestID: int(requestID),
		Type:      int(typeCode),
		Content:   content,
	}, nil
}

// Serialize encodes a Frame back to the wire schema, JSON-encoding
// Content into the inner "content" string.
func Serialize(f *Frame) ([]byte, error) {
	contentJSON, err := json.Marshal(f.Content)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to encode content: %w", err)
	}
	contentStr := string(contentJSON)
	return json.Marshal(struct {
		ID        int     `json:"id"`
		RequestID int     `json:"requestId"`
		Type      int     `json:"type"`
		Content   *string `json:"content"`
	}{
		ID:        f.ID,
		RequestID: f.RequestID,
		Type:      f.Type,
		Content:   &contentStr,
	})
}
