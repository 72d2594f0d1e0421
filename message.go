package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// MessageType tags an inbound or outbound frame.
type MessageType string

const (
	TypeEnter     MessageType = "ENTER"
	TypeLeave     MessageType = "LEAVE"
	TypeChat      MessageType = "CHAT"
	TypeRead      MessageType = "READ"
	TypeHeartbeat MessageType = "HEARTBEAT"
)

// maxContentLen bounds CHAT content length in characters.
const maxContentLen = 2000

var (
	errRoomIDRequired  = errors.New("roomId is required")
	errTypeRequired    = errors.New("type is required")
	errUnknownType     = errors.New("unknown message type")
	errContentRequired = errors.New("content is required for CHAT")
	errContentTooLong  = errors.New("content exceeds maximum length")
	errContentNotEmpty = errors.New("content must be empty for non-CHAT types")
)

// InboundMessage is a frame received from a client. Content presence is
// determined exactly by type: required and non-blank for CHAT, blank or
// absent for everything else.
type InboundMessage struct {
	RoomID  int64       `json:"roomId"`
	Type    MessageType `json:"type"`
	Content string      `json:"content,omitempty"`
}

// DecodeInbound parses and structurally validates a raw frame. Any error
// here is a protocol violation and the caller closes with BAD_DATA.
func DecodeInbound(data []byte) (InboundMessage, error) {
	var in InboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		return InboundMessage{}, fmt.Errorf("malformed frame: %w", err)
	}
	if err := in.validate(); err != nil {
		return InboundMessage{}, err
	}
	return in, nil
}

func (m InboundMessage) validate() error {
	if m.RoomID == 0 {
		return errRoomIDRequired
	}
	if m.Type == "" {
		return errTypeRequired
	}
	switch m.Type {
	case TypeChat:
		if strings.TrimSpace(m.Content) == "" {
			return errContentRequired
		}
		if len([]rune(m.Content)) > maxContentLen {
			return errContentTooLong
		}
	case TypeEnter, TypeLeave, TypeRead, TypeHeartbeat:
		if strings.TrimSpace(m.Content) != "" {
			return errContentNotEmpty
		}
	default:
		return errUnknownType
	}
	return nil
}

// OutboundMessage is a frame delivered to room participants.
// LastReadMessageID is only set on READ acknowledgements.
type OutboundMessage struct {
	RoomID            int64       `json:"roomId"`
	Type              MessageType `json:"type"`
	SenderID          int64       `json:"senderId"`
	Content           string      `json:"content,omitempty"`
	Timestamp         time.Time   `json:"timestamp"`
	LastReadMessageID int64       `json:"lastReadMessageId,omitempty"`
}

// CloseReason is a policy code for terminating a connection. The codes
// are stable across implementations and map onto standard WebSocket
// close codes.
type CloseReason struct {
	name string
	code int
}

var (
	ReasonUnauthenticated = CloseReason{"UNAUTHENTICATED", websocket.CloseUnsupportedData}
	ReasonBadData         = CloseReason{"BAD_DATA", websocket.CloseInvalidFramePayloadData}
	ReasonPolicy          = CloseReason{"POLICY", websocket.ClosePolicyViolation}
	ReasonServerError     = CloseReason{"SERVER_ERROR", websocket.CloseInternalServerErr}
	ReasonUnreliable      = CloseReason{"UNRELIABLE", websocket.CloseTryAgainLater}
)

func (r CloseReason) String() string { return r.name }
func (r CloseReason) Code() int      { return r.code }
