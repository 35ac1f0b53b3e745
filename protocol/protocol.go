// Package protocol defines the Jupyter messaging model used by the kernel:
// message headers, channels, and the content payloads for every message kind
// the kernel sends or receives.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the Jupyter messaging protocol version the kernel speaks.
const Version = "5.3"

// Channel identifies the logical socket a message travels on.
type Channel string

const (
	ChannelShell   Channel = "shell"
	ChannelControl Channel = "control"
	ChannelIOPub   Channel = "iopub"
	ChannelStdin   Channel = "stdin"
)

// Message kinds handled by the kernel.
const (
	MsgExecuteRequest    = "execute_request"
	MsgExecuteReply      = "execute_reply"
	MsgExecuteResult     = "execute_result"
	MsgStream            = "stream"
	MsgDisplayData       = "display_data"
	MsgStatus            = "status"
	MsgKernelInfoRequest = "kernel_info_request"
	MsgKernelInfoReply   = "kernel_info_reply"
	MsgInputRequest      = "input_request"
	MsgInputReply        = "input_reply"
)

// Message kinds the kernel explicitly does not implement. Requests of these
// kinds are rejected with a clear error instead of hanging the front-end.
const (
	MsgCompleteRequest   = "complete_request"
	MsgInspectRequest    = "inspect_request"
	MsgIsCompleteRequest = "is_complete_request"
	MsgCommOpen          = "comm_open"
	MsgCommMsg           = "comm_msg"
	MsgCommClose         = "comm_close"
)

// Header identifies a single message and its origin.
type Header struct {
	MsgID    string `json:"msg_id"`
	Username string `json:"username"`
	Session  string `json:"session"`
	Date     string `json:"date"`
	MsgType  string `json:"msg_type"`
	Version  string `json:"version"`
}

// Message is one protocol message. Content holds the kind-specific payload:
// a typed content struct for outbound messages, json.RawMessage for messages
// parsed off the wire.
type Message struct {
	Header       Header         `json:"header"`
	ParentHeader *Header        `json:"parent_header,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Content      any            `json:"content"`
	Channel      Channel        `json:"channel"`
}

// NewHeader stamps a fresh header with a unique message id and the current
// UTC time.
func NewHeader(msgType, session, username string) Header {
	return Header{
		MsgID:    uuid.NewString(),
		Username: username,
		Session:  session,
		Date:     time.Now().UTC().Format(time.RFC3339Nano),
		MsgType:  msgType,
		Version:  Version,
	}
}

// NewMessage builds an unparented message. Used for broadcasts that have no
// causal request, such as the initial starting status.
func NewMessage(msgType, session, username string, channel Channel, content any) *Message {
	return &Message{
		Header:  NewHeader(msgType, session, username),
		Channel: channel,
		Content: content,
	}
}

// ChildOf builds a message causally linked to parent. The child carries its
// own identity; session and username come from the kernel, not the parent.
func ChildOf(parent *Header, msgType, session, username string, channel Channel, content any) *Message {
	m := NewMessage(msgType, session, username, channel, content)
	if parent != nil {
		p := *parent
		m.ParentHeader = &p
	}
	return m
}

// ParseMessage decodes a wire-format message, leaving Content raw for the
// dispatcher to decode by kind.
func ParseMessage(data []byte) (*Message, error) {
	var wire struct {
		Header       Header          `json:"header"`
		ParentHeader *Header         `json:"parent_header,omitempty"`
		Metadata     map[string]any  `json:"metadata,omitempty"`
		Content      json.RawMessage `json:"content"`
		Channel      Channel         `json:"channel"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	if wire.Header.MsgType == "" {
		return nil, fmt.Errorf("parse message: missing msg_type")
	}
	return &Message{
		Header:       wire.Header,
		ParentHeader: wire.ParentHeader,
		Metadata:     wire.Metadata,
		Content:      wire.Content,
		Channel:      wire.Channel,
	}, nil
}

// DecodeContent unpacks the message content into v. Raw wire content is
// unmarshaled directly; typed content set by in-process callers is passed
// through a JSON round trip so both paths behave identically.
func (m *Message) DecodeContent(v any) error {
	switch c := m.Content.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return json.Unmarshal(c, v)
	case []byte:
		return json.Unmarshal(c, v)
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode content: %w", err)
		}
		return json.Unmarshal(data, v)
	}
}

// Sender delivers outbound messages to the front-end. Implementations must
// preserve submission order per channel and must not block indefinitely.
type Sender interface {
	Send(*Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(*Message) error

func (f SenderFunc) Send(m *Message) error { return f(m) }
