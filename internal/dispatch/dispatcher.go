package dispatch

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"

	"wardline/internal/metrics"
	"wardline/pkg/types"
)

// ChannelPrefix marks an original-recipient entry that names a room rather
// than a user.
const ChannelPrefix = "channel:"

// Target kinds reported in dispatch outcomes.
const (
	KindRoom = "room"
	KindUser = "user"
)

// Sender delivers an alert to one target. The supervisor implements it
// in-process; an HTTP client can implement it for split deployments.
type Sender interface {
	SendRoomAlert(ctx context.Context, room string, alert *types.Alert) error
	SendUserNotification(ctx context.Context, user string, payload []byte) error
}

// Request is one alert fan-out: the notification itself, the user ids to
// notify, and optionally the raw recipient list whose channel-prefixed
// entries name rooms directly.
type Request struct {
	Notification       *types.Alert `json:"notification"`
	Recipients         []string     `json:"recipients"`
	OriginalRecipients []string     `json:"originalRecipients,omitempty"`
}

// Outcome is the result of one dispatch attempt.
type Outcome struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Err    error  `json:"-"`
}

// Error returns the outcome's failure text for the HTTP response body.
func (o Outcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// notificationEnvelope is the frame forwarded to notification actors.
type notificationEnvelope struct {
	Type  string       `json:"type"`
	Alert *types.Alert `json:"alert"`
}

// Dispatcher fans an alert out to room and user targets. It holds no state
// between calls.
type Dispatcher struct {
	sender Sender
}

// New creates a dispatcher delivering through the given sender.
func New(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

// selfRoom names a user's degenerate private room: the user id paired with
// itself, sorted and joined the same way two-party room names are built.
func selfRoom(userID string) string {
	pair := []string{userID, userID}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// targets computes the deduplicated room and user target lists. Room names
// come from the original recipient entries: channel entries name rooms
// directly, bare user entries map to their self rooms. When the request
// carries no original list, the resolved recipients' self rooms are used.
func (r *Request) targets() (rooms, users []string) {
	roomSources := r.OriginalRecipients
	if len(roomSources) == 0 {
		roomSources = r.Recipients
	}

	seen := make(map[string]struct{})
	for _, entry := range roomSources {
		if entry == "" {
			continue
		}
		room := strings.TrimPrefix(entry, ChannelPrefix)
		if !strings.HasPrefix(entry, ChannelPrefix) {
			room = selfRoom(entry)
		}
		if room == "" {
			continue
		}
		if _, dup := seen[room]; dup {
			continue
		}
		seen[room] = struct{}{}
		rooms = append(rooms, room)
	}

	seenUsers := make(map[string]struct{})
	for _, recipient := range r.Recipients {
		if _, dup := seenUsers[recipient]; dup {
			continue
		}
		seenUsers[recipient] = struct{}{}
		users = append(users, recipient)
	}
	return rooms, users
}

// Dispatch delivers the alert to every computed target concurrently and
// returns one outcome per target. Individual failures never abort the rest
// of the fan-out; callers inspect the outcomes for partial failure.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) ([]Outcome, error) {
	if req.Notification == nil {
		return nil, ErrMissingNotification
	}
	if err := req.Notification.Validate(); err != nil {
		return nil, err
	}
	if len(req.Recipients) == 0 && len(req.OriginalRecipients) == 0 {
		return nil, ErrNoRecipients
	}

	payload, err := json.Marshal(notificationEnvelope{
		Type:  types.FrameAlertNotification,
		Alert: req.Notification,
	})
	if err != nil {
		return nil, err
	}

	rooms, users := req.targets()
	outcomes := make([]Outcome, len(rooms)+len(users))

	var wg sync.WaitGroup
	for i, room := range rooms {
		wg.Add(1)
		go func(i int, room string) {
			defer wg.Done()
			err := d.sender.SendRoomAlert(ctx, room, req.Notification)
			outcomes[i] = Outcome{Kind: KindRoom, Target: room, Err: err}
		}(i, room)
	}
	for i, user := range users {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			err := d.sender.SendUserNotification(ctx, user, payload)
			outcomes[len(rooms)+i] = Outcome{Kind: KindUser, Target: user, Err: err}
		}(i, user)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		result := "ok"
		if outcome.Err != nil {
			result = "error"
			log.Printf("Dispatch failed: kind=%s target=%s err=%v", outcome.Kind, outcome.Target, outcome.Err)
		}
		metrics.DispatchTotal.WithLabelValues(outcome.Kind, result).Inc()
	}

	return outcomes, nil
}
