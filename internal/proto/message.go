package proto

import "encoding/json"

// Reserved client message types consumed by the gateway. Every other type is
// opaque signaling payload relayed to the SFU.
const (
	TypeJoin  = "JOIN"
	TypeLeave = "LEAVE"
	TypeError = "ERROR"
)

// Membership notifications the bridge sends to the SFU. Best-effort; the SFU
// is free to ignore them.
const (
	TypePeerJoined = "PEER_JOINED"
	TypePeerLeft   = "PEER_LEFT"
	TypePeerGone   = "PEER_GONE"
)

// Error codes surfaced to clients as ERROR acks.
const (
	ErrCodeMalformed      = "MALFORMED_MESSAGE"
	ErrCodeSFUUnavailable = "SFU_NOT_CONNECTED"
	ErrCodeSFUTimeout     = "SFU_TIMEOUT"
	ErrCodeRateLimited    = "RATE_LIMITED"
)

// Inbound is the envelope for messages coming from a client. The raw payload
// is retained so opaque signaling fields survive the round trip untouched.
type Inbound struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`

	Raw json.RawMessage `json:"-"`
}

// ParseInbound decodes the envelope fields and keeps the raw bytes.
func ParseInbound(data []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, err
	}
	in.Raw = append(json.RawMessage(nil), data...)
	return in, nil
}

// ErrorAck is sent to a client when a message could not be processed. ReqID is
// set when the failure relates to a specific forwarded request.
type ErrorAck struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Msg   string `json:"msg,omitempty"`
	ReqID string `json:"reqId,omitempty"`
}

// NewErrorAck builds an ERROR envelope with the given code.
func NewErrorAck(code, msg string) ErrorAck {
	return ErrorAck{Type: TypeError, Error: code, Msg: msg}
}

// Upstream is the envelope for messages arriving from the SFU. Only the
// routing fields are decoded; the raw JSON is delivered to clients verbatim.
type Upstream struct {
	Type   string `json:"type"`
	ReqID  string `json:"reqId"`
	RoomID string `json:"roomId"`
	UserID int64  `json:"userId"`
}
