package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"wardline/pkg/types"
)

// EventPayload is the body of a generic room event posted over HTTP.
type EventPayload struct {
	CallID     string `json:"callId,omitempty"`
	CallerName string `json:"callerName,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	Duration   int64  `json:"duration,omitempty"`
}

// BroadcastAlert stores the alert, archives it as a protected history entry
// and pushes it to every connected session.
func (a *Actor) BroadcastAlert(ctx context.Context, alert *types.Alert) error {
	if err := alert.Validate(); err != nil {
		return err
	}

	return a.runControl(ctx, func() error {
		if alert.ID == "" {
			alert.ID = uuid.New().String()
		}
		if alert.CreatedAt.IsZero() {
			alert.CreatedAt = time.Now()
		}
		a.alerts.Append(alert)

		record := &types.Message{
			ID:        alert.ID,
			Kind:      types.KindAlert,
			Content:   alert.Message,
			CreatedAt: alert.CreatedAt,
			Sender:    alert.CreatedBy,
		}
		a.history.Append(record)
		a.archive(record)

		a.broadcast(alertFrame{Type: types.FrameAlertNotification, Alert: alert})
		return nil
	})
}

// EndCall marks the call's history entry as ended and broadcasts the update.
func (a *Actor) EndCall(ctx context.Context, callID string, duration int64) error {
	return a.runControl(ctx, func() error {
		if a.history.Find(callID) == nil {
			return ErrMessageNotFound
		}
		a.markCallEnded(callID, duration)
		return nil
	})
}

// AddCallInvitation records a call invitation announced over HTTP.
func (a *Actor) AddCallInvitation(ctx context.Context, payload EventPayload) error {
	return a.runControl(ctx, func() error {
		a.appendCallMarker(types.KindCallInvitation, types.FrameCallInvitation,
			payload.CallID, payload.CallerName, payload.Timestamp)
		return nil
	})
}

// AddCallJoin records a call join announced over HTTP.
func (a *Actor) AddCallJoin(ctx context.Context, payload EventPayload) error {
	return a.runControl(ctx, func() error {
		a.appendCallMarker(types.KindCallJoin, types.FrameCallJoin,
			payload.CallID, payload.CallerName, payload.Timestamp)
		return nil
	})
}

// HandleEvent routes a generic posted event to the matching operation.
func (a *Actor) HandleEvent(ctx context.Context, eventType string, payload EventPayload) error {
	switch eventType {
	case types.FrameCallInvitation:
		return a.AddCallInvitation(ctx, payload)
	case types.FrameCallJoin:
		return a.AddCallJoin(ctx, payload)
	case types.FrameCallEnd:
		return a.EndCall(ctx, payload.CallID, payload.Duration)
	default:
		return ErrUnknownEventType
	}
}
