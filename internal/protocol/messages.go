package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientMessage MessageType = "client_message"
	TypeClientControl MessageType = "client_control"
	TypeBotReply      MessageType = "bot_reply"
	TypeSystemEvent   MessageType = "system_event"
	TypeErrorEvent    MessageType = "error_event"
)

const maxClientTextLen = 4096

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientMessage is free text typed by the user.
type ClientMessage struct {
	Type MessageType `json:"type"`
	Seq  int         `json:"seq"`
	Text string      `json:"text"`
}

// ClientControl is a button press. Action is one of the menu actions
// offered in BotReply.Actions.
type ClientControl struct {
	Type   MessageType `json:"type"`
	Seq    int         `json:"seq"`
	Action string      `json:"action"`
}

type Progress struct {
	Filled  int    `json:"filled"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Pending string `json:"pending,omitempty"`
}

type BotReply struct {
	Type     MessageType `json:"type"`
	Seq      int         `json:"seq"`
	Text     string      `json:"text"`
	Actions  []string    `json:"actions,omitempty"`
	Progress *Progress   `json:"progress,omitempty"`
}

type SystemEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	Seq       int         `json:"seq"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientMessage:
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if len(msg.Text) > maxClientTextLen {
			return nil, errors.New("invalid client_message: text too long")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Action = strings.TrimSpace(msg.Action)
		if msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
