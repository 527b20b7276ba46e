package room

import (
	"context"
	"log"
	"sync"
	"time"

	"wardline/internal/auth"
	"wardline/internal/call"
	"wardline/internal/history"
	"wardline/internal/presence"
	ws "wardline/internal/websocket"
	"wardline/pkg/interfaces"
	"wardline/pkg/types"
)

// Config carries the runtime settings a room actor needs. The supervisor
// passes it explicitly at creation; actors share no ambient process state.
type Config struct {
	HistoryCap        int
	AlertCap          int
	MessagesPerMinute int
	BufferSize        int
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// Actor holds the live state of one room: bounded history, presence, the
// call lifecycle tracker and the open sessions. All state is mutated on a
// single event loop goroutine, so no locking protects it; concurrency across
// the system comes from independent actor instances.
type Actor struct {
	name     string
	cfg      *Config
	verifier *auth.Verifier
	store    interfaces.RecordStore

	history  *history.Store
	alerts   *history.AlertLog
	presence *presence.Tracker
	calls    *call.Tracker
	limiter  *RateLimiter
	sessions map[*ws.Session]struct{}

	frameChannel   chan frameEvent
	attachChannel  chan *ws.Session
	detachChannel  chan *ws.Session
	controlChannel chan controlRequest
	callChannel    chan callResult
	shutdownCh     chan struct{}

	running bool
	mu      sync.RWMutex
}

// frameEvent is one inbound socket frame with its originating session.
type frameEvent struct {
	session *ws.Session
	data    []byte
}

// controlRequest is an HTTP-surface operation executed on the event loop.
type controlRequest struct {
	apply func() error
	reply chan error
}

// callResult delivers the outcome of asynchronous call-record I/O back to
// the event loop.
type callResult struct {
	start    bool
	recordID string
	err      error
}

// NewActor creates a room actor. The store is required: history, alerts and
// call records are all persisted through it. Start must be called before the
// actor serves.
func NewActor(name string, cfg *Config, verifier *auth.Verifier, store interfaces.RecordStore) *Actor {
	return &Actor{
		name:     name,
		cfg:      cfg,
		verifier: verifier,
		store:    store,

		history:  history.NewStore(cfg.HistoryCap, nil),
		alerts:   history.NewAlertLog(cfg.AlertCap),
		presence: presence.NewTracker(),
		calls:    call.NewTracker(),
		limiter:  NewRateLimiter(cfg.MessagesPerMinute),
		sessions: make(map[*ws.Session]struct{}),

		frameChannel:   make(chan frameEvent, 256),
		attachChannel:  make(chan *ws.Session, 16),
		detachChannel:  make(chan *ws.Session, 16),
		controlChannel: make(chan controlRequest, 16),
		callChannel:    make(chan callResult, 4),
		shutdownCh:     make(chan struct{}),
	}
}

// Name returns the room name this actor is addressed by.
func (a *Actor) Name() string {
	return a.name
}

// Start begins the actor's event loop.
func (a *Actor) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrActorAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	log.Printf("Starting room actor: room=%s", a.name)
	go a.run(ctx)

	return nil
}

// Stop shuts the actor down and closes all sessions.
func (a *Actor) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return ErrActorNotRunning
	}
	a.running = false

	select {
	case <-a.shutdownCh:
	default:
		close(a.shutdownCh)
	}

	return nil
}

// run is the single event loop. Every mutation of history, presence and
// call state happens here, strictly in turn.
func (a *Actor) run(ctx context.Context) {
	a.restoreHistory()

	cleanupTicker := time.NewTicker(5 * time.Minute)

	defer func() {
		cleanupTicker.Stop()
		for session := range a.sessions {
			_ = session.Close()
		}
		log.Printf("Room actor stopped: room=%s", a.name)
	}()

	for {
		select {
		case event := <-a.frameChannel:
			a.handleFrame(event.session, event.data)

		case session := <-a.attachChannel:
			a.handleAttach(session)

		case session := <-a.detachChannel:
			a.removeSession(session)

		case req := <-a.controlChannel:
			req.reply <- req.apply()

		case result := <-a.callChannel:
			a.handleCallResult(result)

		case <-cleanupTicker.C:
			a.limiter.Cleanup()

		case <-a.shutdownCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// restoreHistory seeds the in-memory store from the archive so a recreated
// room replays messages persisted by a previous process. Runs before the
// first event is processed.
func (a *Actor) restoreHistory() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	archived, err := a.store.RoomArchive(ctx, a.name, a.cfg.HistoryCap)
	if err != nil {
		log.Printf("Failed to load room archive: room=%s err=%v", a.name, err)
		return
	}
	for _, message := range archived {
		a.history.Append(message)
	}
	if len(archived) > 0 {
		log.Printf("Room history restored: room=%s messages=%d", a.name, len(archived))
	}
}

// enqueueFrame hands a socket frame to the event loop. Blocking preserves
// per-connection FIFO ordering.
func (a *Actor) enqueueFrame(session *ws.Session, data []byte) error {
	select {
	case a.frameChannel <- frameEvent{session: session, data: data}:
		return nil
	case <-a.shutdownCh:
		return ErrActorNotRunning
	}
}

// enqueueDetach reports a dead connection to the event loop.
func (a *Actor) enqueueDetach(session *ws.Session) {
	select {
	case a.detachChannel <- session:
	case <-a.shutdownCh:
	}
}

// runControl executes an HTTP-surface operation on the event loop and waits
// for its result.
func (a *Actor) runControl(ctx context.Context, apply func() error) error {
	req := controlRequest{apply: apply, reply: make(chan error, 1)}

	select {
	case a.controlChannel <- req:
	case <-a.shutdownCh:
		return ErrActorNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-a.shutdownCh:
		return ErrActorNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleAttach registers a new session and replays room state to it: the
// full history first, then a presence snapshot.
func (a *Actor) handleAttach(session *ws.Session) {
	a.sessions[session] = struct{}{}

	// Pre-authenticated upgrade (token query parameter) joins presence
	// before the replay so the snapshot includes the new user.
	identity := session.Identity()
	if identity != nil {
		a.presence.Add(identity)
	}

	if err := session.WriteJSON(messagesFrame{Type: types.FrameMessages, Messages: a.history.Snapshot()}); err != nil {
		a.removeSession(session)
		return
	}

	if identity != nil {
		a.broadcastPresence()
		log.Printf("Session attached: room=%s user=%s", a.name, identity.ID)
	} else {
		if err := session.WriteJSON(a.presenceSnapshot()); err != nil {
			a.removeSession(session)
		}
	}
}

// removeSession drops a session. Idempotent: broadcast failures and read
// pump errors can both report the same session.
func (a *Actor) removeSession(session *ws.Session) {
	if _, exists := a.sessions[session]; !exists {
		return
	}
	delete(a.sessions, session)
	_ = session.Close()

	identity := session.Identity()
	if identity != nil && !a.identityConnected(identity.ID) {
		a.presence.Remove(identity.ID)
		a.broadcastPresence()
		log.Printf("Session detached: room=%s user=%s", a.name, identity.ID)
	}

	// The last session closing while a call is active triggers the
	// best-effort close of the external record.
	if len(a.sessions) == 0 && a.calls.State() == call.Active {
		a.beginCallClose()
	}
}

// identityConnected reports whether any remaining session carries the
// identity.
func (a *Actor) identityConnected(identityID string) bool {
	for session := range a.sessions {
		if id := session.Identity(); id != nil && id.ID == identityID {
			return true
		}
	}
	return false
}

// presenceSnapshot builds the wholesale presence frame.
func (a *Actor) presenceSnapshot() presenceFrame {
	return presenceFrame{Type: types.FramePresence, OnlineUsers: a.presence.Snapshot()}
}

// broadcastPresence sends the current presence set to every session.
func (a *Actor) broadcastPresence() {
	a.broadcast(a.presenceSnapshot())
}

// broadcast delivers v to every session. Sessions whose socket fails are
// treated as dead and removed without crashing the room.
func (a *Actor) broadcast(v any) {
	var dead []*ws.Session
	for session := range a.sessions {
		if err := session.WriteJSON(v); err != nil {
			log.Printf("Broadcast failed, dropping session: room=%s err=%v", a.name, err)
			dead = append(dead, session)
		}
	}
	for _, session := range dead {
		a.removeSession(session)
	}
}

// broadcastRaw relays pre-encoded frames (typing, reaction, call events)
// without re-marshaling.
func (a *Actor) broadcastRaw(data []byte) {
	var dead []*ws.Session
	for session := range a.sessions {
		if err := session.WriteRaw(data); err != nil {
			dead = append(dead, session)
		}
	}
	for _, session := range dead {
		a.removeSession(session)
	}
}

// sendError sends an error frame to one session.
func (a *Actor) sendError(session *ws.Session, message string) {
	if err := session.WriteJSON(errorFrame{Error: message}); err != nil {
		a.removeSession(session)
	}
}

// archive persists a deep copy of the message off the event loop. The copy
// is taken on the loop so in-place edits to the live entry never touch the
// snapshot the store serializes. Best effort: failures are logged and
// broadcasting continues.
func (a *Actor) archive(message *types.Message) {
	snapshot := message.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.store.ArchiveMessage(ctx, a.name, snapshot); err != nil {
			log.Printf("Failed to archive message: room=%s id=%s err=%v", a.name, snapshot.ID, err)
		}
	}()
}

// beginCallClose starts closing the active call record. The state machine
// moves to Ending before any I/O; a failed write aborts back to Active and
// keeps the record reference.
func (a *Actor) beginCallClose() {
	if err := a.calls.BeginEnd(); err != nil {
		return
	}
	recordID := a.calls.RecordID()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := a.store.CloseCallSession(ctx, recordID)
		select {
		case a.callChannel <- callResult{start: false, recordID: recordID, err: err}:
		case <-a.shutdownCh:
		}
	}()
}

// handleCallResult applies the outcome of asynchronous record I/O.
func (a *Actor) handleCallResult(result callResult) {
	if result.start {
		if result.err != nil {
			log.Printf("Call session create failed: room=%s err=%v", a.name, result.err)
			a.calls.AbortStart()
			return
		}
		if err := a.calls.Activate(result.recordID); err != nil {
			log.Printf("Call activation rejected: room=%s err=%v", a.name, err)
			return
		}
		log.Printf("Call session started: room=%s record=%s", a.name, result.recordID)
		// The room can empty out during the create round trip; the removal
		// path has already run, so close the record here.
		if len(a.sessions) == 0 {
			log.Printf("Call activated into empty room, closing: room=%s record=%s", a.name, result.recordID)
			a.beginCallClose()
			return
		}
		a.broadcast(callStartedFrame{Type: types.FrameCallSessionStarted, CallSessionID: result.recordID})
		return
	}

	if result.err != nil {
		log.Printf("Call session close failed, keeping reference: room=%s record=%s err=%v",
			a.name, result.recordID, result.err)
		a.calls.AbortEnd()
		return
	}
	a.calls.FinishEnd()
	log.Printf("Call session closed: room=%s record=%s", a.name, result.recordID)
}

// Stats returns counters for the health endpoint.
func (a *Actor) Stats() map[string]int {
	done := make(chan map[string]int, 1)
	err := a.runControl(context.Background(), func() error {
		done <- map[string]int{
			"sessions": len(a.sessions),
			"presence": a.presence.Len(),
			"history":  a.history.Len(),
			"alerts":   a.alerts.Len(),
		}
		return nil
	})
	if err != nil {
		return map[string]int{}
	}
	return <-done
}
