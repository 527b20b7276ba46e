package room

import (
	"encoding/json"

	"wardline/pkg/types"
)

// inboundFrame covers every client frame shape. Unused fields stay zero; the
// raw bytes are kept for opaque relays (typing, call).
type inboundFrame struct {
	Type        string           `json:"type"`
	Token       string           `json:"token,omitempty"`
	ThreadID    string           `json:"threadId,omitempty"`
	Content     string           `json:"content,omitempty"`
	Attachments []map[string]any `json:"attachments,omitempty"`
	ReplyToID   string           `json:"replyToId,omitempty"`
	Payload     json.RawMessage  `json:"payload,omitempty"`
	CallID      string           `json:"callId,omitempty"`
	CallerName  string           `json:"callerName,omitempty"`
	Timestamp   int64            `json:"timestamp,omitempty"`
	Duration    int64            `json:"duration,omitempty"`

	raw []byte
}

// reactionPayload is the body of a reaction frame.
type reactionPayload struct {
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
}

// deletePayload is the body of a delete_message frame.
type deletePayload struct {
	MessageID string `json:"messageId"`
}

// statusPayload is the body of a message_status_update frame.
type statusPayload struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// Outbound envelopes.
type messagesFrame struct {
	Type     string           `json:"type"`
	Messages []*types.Message `json:"messages"`
}

type presenceFrame struct {
	Type        string                 `json:"type"`
	OnlineUsers []*types.PresenceEntry `json:"onlineUsers"`
}

type updatedFrame struct {
	Type    string         `json:"type"`
	Payload *types.Message `json:"payload"`
}

type callStartedFrame struct {
	Type          string `json:"type"`
	CallSessionID string `json:"callSessionId"`
}

type alertFrame struct {
	Type  string       `json:"type"`
	Alert *types.Alert `json:"alert"`
}

type errorFrame struct {
	Error string `json:"error"`
}
