package room

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"wardline/internal/metrics"
	ws "wardline/internal/websocket"
	"wardline/pkg/types"
)

// handleFrame dispatches one inbound socket frame. Runs on the event loop.
func (a *Actor) handleFrame(session *ws.Session, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		a.sendError(session, "invalid frame")
		return
	}
	frame.raw = data

	metrics.MessagesTotal.WithLabelValues(frame.Type).Inc()

	if frame.Type == types.FrameAuth {
		a.handleAuth(session, &frame)
		return
	}

	if !session.IsAuthenticated() {
		a.sendError(session, ErrNotAuthenticated.Error())
		go session.CloseAbnormal(ErrNotAuthenticated.Error())
		return
	}

	switch frame.Type {
	case types.FrameMessage:
		a.handleMessage(session, &frame)
	case types.FrameReaction:
		a.handleReaction(session, &frame)
	case types.FrameDeleteMessage:
		a.handleDelete(session, &frame)
	case types.FrameStatusUpdate:
		a.handleStatusUpdate(session, &frame)
	case types.FrameTyping, types.FrameCall:
		a.broadcastRaw(frame.raw)
	case types.FrameCallStart:
		a.handleCallStart(session)
	case types.FrameCallInvitation:
		a.appendCallMarker(types.KindCallInvitation, types.FrameCallInvitation, frame.CallID, frame.CallerName, frame.Timestamp)
	case types.FrameCallJoin:
		a.appendCallMarker(types.KindCallJoin, types.FrameCallJoin, frame.CallID, frame.CallerName, frame.Timestamp)
	case types.FrameCallEnd:
		a.markCallEnded(frame.CallID, frame.Duration)
	default:
		a.sendError(session, "unknown frame type")
	}
}

// handleAuth verifies the token and joins the identity to presence. A failed
// verification gets an error frame and an abnormal close.
func (a *Actor) handleAuth(session *ws.Session, frame *inboundFrame) {
	identity, err := a.verifier.Verify(frame.Token)
	if err != nil {
		log.Printf("Authentication rejected: room=%s err=%v", a.name, err)
		a.sendError(session, "authentication failed")
		go session.CloseAbnormal("authentication failed")
		return
	}

	session.SetIdentity(identity)
	a.presence.Add(identity)
	a.broadcastPresence()
	log.Printf("User authenticated: room=%s user=%s", a.name, identity.ID)
}

// handleMessage appends a chat message to history and broadcasts the bare
// envelope. The server assigns id, timestamp and initial status.
func (a *Actor) handleMessage(session *ws.Session, frame *inboundFrame) {
	identity := session.Identity()

	if !a.limiter.Allow(identity.ID) {
		a.sendError(session, ErrRateLimited.Error())
		return
	}

	message := &types.Message{
		ID:          uuid.New().String(),
		Kind:        types.KindPlain,
		ThreadID:    frame.ThreadID,
		Content:     frame.Content,
		Attachments: frame.Attachments,
		ReplyToID:   frame.ReplyToID,
		CreatedAt:   time.Now(),
		Sender:      identity,
		Status:      types.StatusSent,
	}

	if err := message.Validate(); err != nil {
		a.sendError(session, err.Error())
		return
	}

	a.history.Append(message)
	a.archive(message)
	a.broadcast(message)
}

// handleReaction toggles a reaction on a history entry and relays the frame
// verbatim so every client applies the same toggle.
func (a *Actor) handleReaction(session *ws.Session, frame *inboundFrame) {
	var payload reactionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		a.sendError(session, "invalid reaction payload")
		return
	}

	found := a.history.UpdateInPlace(payload.MessageID, func(m *types.Message) {
		m.ToggleReaction(payload.Emoji, payload.UserID, payload.UserName)
	})
	if !found {
		return
	}

	if updated := a.history.Find(payload.MessageID); updated != nil {
		a.archive(updated)
	}
	a.broadcastRaw(frame.raw)
}

// handleDelete tombstones a message and broadcasts the updated entry.
func (a *Actor) handleDelete(session *ws.Session, frame *inboundFrame) {
	var payload deletePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		a.sendError(session, "invalid delete payload")
		return
	}

	identity := session.Identity()
	found := a.history.UpdateInPlace(payload.MessageID, func(m *types.Message) {
		m.MarkDeleted(identity.ID, time.Now())
	})
	if !found {
		return
	}

	updated := a.history.Find(payload.MessageID)
	a.archive(updated)
	a.broadcast(updatedFrame{Type: types.FrameMessageUpdated, Payload: updated})
}

// handleStatusUpdate records a delivery status change and relays the frame.
func (a *Actor) handleStatusUpdate(session *ws.Session, frame *inboundFrame) {
	var payload statusPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		a.sendError(session, "invalid status payload")
		return
	}

	found := a.history.UpdateInPlace(payload.MessageID, func(m *types.Message) {
		m.Status = payload.Status
	})
	if !found {
		return
	}
	a.broadcastRaw(frame.raw)
}

// handleCallStart claims the call slot synchronously, then creates the
// external record off the loop. Overlapping starts are rejected before any
// I/O happens.
func (a *Actor) handleCallStart(session *ws.Session) {
	if err := a.calls.Begin(); err != nil {
		a.sendError(session, "call already in progress")
		return
	}

	identity := session.Identity()
	record := &types.CallSession{
		ID:           uuid.New().String(),
		Room:         a.name,
		Participants: []string{identity.ID},
		StartTime:    time.Now(),
		Status:       types.CallStatusActive,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := a.store.CreateCallSession(ctx, record)
		select {
		case a.callChannel <- callResult{start: true, recordID: record.ID, err: err}:
		case <-a.shutdownCh:
		}
	}()
}

// appendCallMarker records a call invitation or join as a protected history
// entry. Deduplicated by call id so repeated announcements collapse.
func (a *Actor) appendCallMarker(kind, frameType, callID, callerName string, timestamp int64) {
	if callID == "" {
		return
	}
	if a.history.Find(callID) != nil {
		return
	}

	createdAt := time.Now()
	if timestamp > 0 {
		createdAt = time.UnixMilli(timestamp)
	}

	message := &types.Message{
		ID:         callID,
		Kind:       kind,
		Content:    frameType,
		CreatedAt:  createdAt,
		CallID:     callID,
		CallerName: callerName,
	}

	a.history.Append(message)
	a.archive(message)
	a.broadcast(message)
}

// markCallEnded flags the invitation entry for a finished call and
// broadcasts the update. Duration is in seconds.
func (a *Actor) markCallEnded(callID string, duration int64) {
	found := a.history.UpdateInPlace(callID, func(m *types.Message) {
		m.Ended = true
		m.Duration = duration
	})
	if !found {
		return
	}

	updated := a.history.Find(callID)
	a.archive(updated)
	a.broadcast(updatedFrame{Type: types.FrameMessageUpdated, Payload: updated})
}
