package types

import (
	"time"
)

// Inbound frame types accepted by room and notification actors.
const (
	FrameAuth           = "auth"
	FrameMessage        = "message"
	FrameReaction       = "reaction"
	FrameTyping         = "typing"
	FrameDeleteMessage  = "delete_message"
	FrameStatusUpdate   = "message_status_update"
	FrameCallStart      = "call-start"
	FrameCall           = "call"
	FrameCallJoin       = "call_join"
	FrameCallInvitation = "call_invitation"
	FrameCallEnd        = "call_end"
)

// Outbound frame types sent to connected clients.
const (
	FrameMessages           = "messages"
	FramePresence           = "presence"
	FrameMessageUpdated     = "message_updated"
	FrameCallSessionStarted = "call-session-started"
	FrameAlertNotification  = "alert_notification"
)

// Message kinds stored in room history. Alert, call invitation and call join
// messages are protected from normal eviction.
const (
	KindPlain          = "plain"
	KindAlert          = "alert"
	KindCallInvitation = "call_invitation"
	KindCallJoin       = "call_join"
)

// Delivery status values carried on a Message.
const (
	StatusSent = "sent"
)

// DeletedContent replaces the original content when a message is tombstoned.
const DeletedContent = "This message was deleted"

// Identity is an authenticated user, obtained only from token verification.
// Never persisted independently of the session that carries it.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
	Role        string `json:"role,omitempty"`
	OrgID       string `json:"orgId,omitempty"`
}

// Reactor identifies one user inside an emoji reaction set.
type Reactor struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Tombstone records who deleted a message and when.
type Tombstone struct {
	By string    `json:"by"`
	At time.Time `json:"at"`
}

// Message is one entry in a room's bounded history. Reactions, deletion and
// status changes mutate the entry in place; entries are only removed by the
// eviction policy.
type Message struct {
	ID          string               `json:"id"`
	Kind        string               `json:"kind"`
	ThreadID    string               `json:"threadId,omitempty"`
	Content     string               `json:"content"`
	Attachments []map[string]any     `json:"attachments,omitempty"`
	ReplyToID   string               `json:"replyToId,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	Sender      *Identity            `json:"sender,omitempty"`
	Status      string               `json:"status,omitempty"`
	Reactions   map[string][]Reactor `json:"reactions,omitempty"`
	Deleted     *Tombstone           `json:"deleted,omitempty"`

	// Call marker fields, used by call_invitation and call_join messages.
	CallID     string `json:"callId,omitempty"`
	CallerName string `json:"callerName,omitempty"`
	Duration   int64  `json:"duration,omitempty"`
	Ended      bool   `json:"ended,omitempty"`
}

// Clone returns a deep copy that can be handed to another goroutine while
// the original keeps being mutated in place on its owner's loop.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Sender != nil {
		sender := *m.Sender
		clone.Sender = &sender
	}
	if m.Deleted != nil {
		deleted := *m.Deleted
		clone.Deleted = &deleted
	}
	if m.Attachments != nil {
		clone.Attachments = make([]map[string]any, len(m.Attachments))
		for i, attachment := range m.Attachments {
			copied := make(map[string]any, len(attachment))
			for key, value := range attachment {
				copied[key] = value
			}
			clone.Attachments[i] = copied
		}
	}
	if m.Reactions != nil {
		clone.Reactions = make(map[string][]Reactor, len(m.Reactions))
		for emoji, set := range m.Reactions {
			clone.Reactions[emoji] = append([]Reactor(nil), set...)
		}
	}
	return &clone
}

// ToggleReaction adds {userID, userName} to the emoji's reactor set if absent
// and removes it if present. The emoji key is dropped entirely when its set
// becomes empty, so applying the same toggle twice restores the prior state.
func (m *Message) ToggleReaction(emoji, userID, userName string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]Reactor)
	}
	set := m.Reactions[emoji]
	for i, r := range set {
		if r.UserID == userID {
			set = append(set[:i], set[i+1:]...)
			if len(set) == 0 {
				delete(m.Reactions, emoji)
			} else {
				m.Reactions[emoji] = set
			}
			return
		}
	}
	m.Reactions[emoji] = append(set, Reactor{UserID: userID, UserName: userName})
}

// MarkDeleted tombstones the message: content is overwritten and attachments
// cleared. Deleting an already-deleted message is a no-op so the tombstone
// content never reverts.
func (m *Message) MarkDeleted(by string, at time.Time) {
	if m.Deleted != nil {
		return
	}
	m.Content = DeletedContent
	m.Attachments = nil
	m.Deleted = &Tombstone{By: by, At: at}
}

// IsProtected reports whether the message belongs to a protected category:
// part of a thread, an alert, or a call marker.
func (m *Message) IsProtected() bool {
	if m.ThreadID != "" {
		return true
	}
	switch m.Kind {
	case KindAlert, KindCallInvitation, KindCallJoin:
		return true
	}
	return false
}

// PresenceEntry is one authenticated, connected identity in a room.
type PresenceEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

// Alert is an organization- or channel-targeted notification, transient for
// the duration of a dispatch.
type Alert struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Level     string    `json:"level,omitempty"`
	Type      string    `json:"type,omitempty"`
	CreatedBy *Identity `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// CallSession is the database-backed record of a call's lifetime. Rooms
// reference it only by ID.
type CallSession struct {
	ID           string     `json:"id"`
	Room         string     `json:"room"`
	Participants []string   `json:"participants"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Status       string     `json:"status"`
}

// Call session status values.
const (
	CallStatusActive = "active"
	CallStatusEnded  = "ended"
)
