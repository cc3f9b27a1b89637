package gateway

import (
	"encoding/json"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Frame types handled or produced by the gateway itself. Domain events use
// their event type names.
const (
	FrameAuthenticate  = "authenticate"
	FrameAuthenticated = "authenticated"
	FramePing          = "ping"
	FramePong          = "pong"
	FrameError         = "error"
)

// Error codes carried by error frames.
const (
	CodeInvalidArgument      = "INVALID_ARGUMENT"
	CodeAlreadyAuthenticated = "ALREADY_AUTHENTICATED"
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeForbidden            = "FORBIDDEN"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternal             = "INTERNAL"
)

// AuthenticatePayload is sent by the client right after connecting.
type AuthenticatePayload struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// AuthenticatedPayload acknowledges a successful bind.
type AuthenticatedPayload struct {
	ConnectionID string   `json:"connectionId"`
	UserID       string   `json:"userId"`
	Role         string   `json:"role"`
	Channels     []string `json:"channels"`
}

// ErrorPayload describes a rejected frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeFrame(frameType, requestID string, payload any) ([]byte, error) {
	frame := Frame{Type: frameType, RequestID: requestID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		frame.Payload = raw
	}
	return json.Marshal(frame)
}
