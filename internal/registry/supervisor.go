package registry

import (
	"context"
	"log"
	"sync"

	"wardline/internal/auth"
	"wardline/internal/config"
	"wardline/internal/notify"
	"wardline/internal/room"
	"wardline/pkg/interfaces"
	"wardline/pkg/types"
)

// Supervisor owns every live actor in the process. Actors are created on
// first use and addressed by kind plus name; the same name always resolves
// to the same actor until shutdown.
type Supervisor struct {
	cfg      *config.Config
	verifier *auth.Verifier
	store    interfaces.RecordStore

	mu        sync.Mutex
	rooms     map[string]*room.Actor
	notifiers map[string]*notify.Actor

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSupervisor creates an empty supervisor. Actors spawn lazily.
func NewSupervisor(cfg *config.Config, verifier *auth.Verifier, store interfaces.RecordStore) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:       cfg,
		verifier:  verifier,
		store:     store,
		rooms:     make(map[string]*room.Actor),
		notifiers: make(map[string]*notify.Actor),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Supervisor) roomConfig() *room.Config {
	return &room.Config{
		HistoryCap:        s.cfg.Room.HistoryCap,
		AlertCap:          s.cfg.Room.AlertCap,
		MessagesPerMinute: s.cfg.Room.MessagesPerMinute,
		BufferSize:        s.cfg.WebSocket.BufferSize,
		PingInterval:      s.cfg.WebSocket.PingInterval,
		ReadTimeout:       s.cfg.WebSocket.ReadTimeout,
		WriteTimeout:      s.cfg.WebSocket.WriteTimeout,
	}
}

func (s *Supervisor) notifyConfig() *notify.Config {
	return &notify.Config{
		AuthTimeout:  s.cfg.Auth.NotifyAuthTimeout,
		BufferSize:   s.cfg.WebSocket.BufferSize,
		PingInterval: s.cfg.WebSocket.PingInterval,
		ReadTimeout:  s.cfg.WebSocket.ReadTimeout,
		WriteTimeout: s.cfg.WebSocket.WriteTimeout,
	}
}

// GetRoom returns the room actor for the name, creating and starting it on
// first use.
func (s *Supervisor) GetRoom(name string) (*room.Actor, error) {
	if !types.IsValidRoomName(name) {
		return nil, types.ErrInvalidRoomName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if actor, exists := s.rooms[name]; exists {
		return actor, nil
	}

	actor := room.NewActor(name, s.roomConfig(), s.verifier, s.store)
	if err := actor.Start(s.ctx); err != nil {
		return nil, err
	}
	s.rooms[name] = actor
	log.Printf("Room actor created: room=%s total=%d", name, len(s.rooms))

	return actor, nil
}

// GetNotifier returns the notification actor for the user id, creating and
// starting it on first use.
func (s *Supervisor) GetNotifier(userID string) (*notify.Actor, error) {
	if !types.IsValidUserID(userID) {
		return nil, types.ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if actor, exists := s.notifiers[userID]; exists {
		return actor, nil
	}

	actor := notify.NewActor(userID, s.notifyConfig(), s.verifier)
	if err := actor.Start(s.ctx); err != nil {
		return nil, err
	}
	s.notifiers[userID] = actor
	log.Printf("Notification actor created: user=%s total=%d", userID, len(s.notifiers))

	return actor, nil
}

// SendRoomAlert resolves the room actor and broadcasts the alert into it.
// Implements the dispatcher's in-process sender.
func (s *Supervisor) SendRoomAlert(ctx context.Context, roomName string, alert *types.Alert) error {
	actor, err := s.GetRoom(roomName)
	if err != nil {
		return err
	}
	return actor.BroadcastAlert(ctx, alert)
}

// SendUserNotification resolves the notification actor and forwards the
// payload.
func (s *Supervisor) SendUserNotification(ctx context.Context, userID string, payload []byte) error {
	actor, err := s.GetNotifier(userID)
	if err != nil {
		return err
	}
	return actor.Notify(ctx, payload)
}

// Stats returns actor counts for the health endpoint.
func (s *Supervisor) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		"rooms":     len(s.rooms),
		"notifiers": len(s.notifiers),
	}
}

// Shutdown stops every actor. New lookups after shutdown fail because the
// supervisor context is canceled.
func (s *Supervisor) Shutdown() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, actor := range s.rooms {
		if err := actor.Stop(); err != nil {
			log.Printf("Room actor stop failed: room=%s err=%v", name, err)
		}
	}
	for user, actor := range s.notifiers {
		if err := actor.Stop(); err != nil {
			log.Printf("Notification actor stop failed: user=%s err=%v", user, err)
		}
	}

	s.rooms = make(map[string]*room.Actor)
	s.notifiers = make(map[string]*notify.Actor)
	log.Printf("Supervisor shut down")
}
