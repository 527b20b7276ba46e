package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"wardline/internal/auth"
	"wardline/internal/metrics"
	ws "wardline/internal/websocket"
	"wardline/pkg/types"
)

// Config carries the runtime settings a notification actor needs.
type Config struct {
	AuthTimeout  time.Duration
	BufferSize   int
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Actor is one user's private notification channel. It keeps no history;
// its only job is verifying that connecting sockets belong to the user and
// forwarding dispatched payloads to them verbatim.
type Actor struct {
	user     string
	cfg      *Config
	verifier *auth.Verifier

	sessions map[*ws.Session]struct{}

	frameChannel  chan frameEvent
	attachChannel chan *ws.Session
	detachChannel chan *ws.Session
	notifyChannel chan notifyRequest
	shutdownCh    chan struct{}

	running bool
	mu      sync.RWMutex
}

type frameEvent struct {
	session *ws.Session
	data    []byte
}

type notifyRequest struct {
	payload []byte
	reply   chan error
}

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type errorFrame struct {
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:   4096,
	WriteBufferSize:  4096,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewActor creates a notification actor for the given user id.
func NewActor(user string, cfg *Config, verifier *auth.Verifier) *Actor {
	return &Actor{
		user:     user,
		cfg:      cfg,
		verifier: verifier,

		sessions: make(map[*ws.Session]struct{}),

		frameChannel:  make(chan frameEvent, 64),
		attachChannel: make(chan *ws.Session, 16),
		detachChannel: make(chan *ws.Session, 16),
		notifyChannel: make(chan notifyRequest, 16),
		shutdownCh:    make(chan struct{}),
	}
}

// User returns the user id this actor serves.
func (a *Actor) User() string {
	return a.user
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

	log.Printf("Starting notification actor: user=%s", a.user)
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

func (a *Actor) run(ctx context.Context) {
	defer func() {
		for session := range a.sessions {
			_ = session.Close()
		}
		log.Printf("Notification actor stopped: user=%s", a.user)
	}()

	for {
		select {
		case event := <-a.frameChannel:
			a.handleFrame(event.session, event.data)

		case session := <-a.attachChannel:
			a.sessions[session] = struct{}{}

		case session := <-a.detachChannel:
			if _, exists := a.sessions[session]; exists {
				delete(a.sessions, session)
				_ = session.Close()
			}

		case req := <-a.notifyChannel:
			req.reply <- a.deliver(req.payload)

		case <-a.shutdownCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// ServeWS upgrades a connection onto this user's channel. The socket must
// authenticate as the channel's user within the auth timeout or it is
// closed abnormally.
func (a *Actor) ServeWS(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	running := a.running
	a.mu.RUnlock()
	if !running {
		http.Error(w, "channel unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: user=%s err=%v", a.user, err)
		return
	}

	session := ws.NewSession(conn, a.cfg.BufferSize, a.cfg.WriteTimeout)
	metrics.ConnectionsTotal.WithLabelValues("notify").Inc()

	if token := r.URL.Query().Get("token"); token != "" {
		identity, err := a.authenticate(token)
		if err != nil {
			session.CloseAbnormal("authentication failed")
			return
		}
		session.SetIdentity(identity)
	}

	select {
	case a.attachChannel <- session:
	case <-a.shutdownCh:
		_ = session.Close()
		return
	}

	a.armAuthTimer(session)
	go a.readPump(session)
}

// armAuthTimer closes the socket if no identity is attached when the auth
// window expires.
func (a *Actor) armAuthTimer(session *ws.Session) {
	timer := time.AfterFunc(a.cfg.AuthTimeout, func() {
		if !session.IsAuthenticated() {
			log.Printf("Authentication timeout: user=%s", a.user)
			session.CloseAbnormal("authentication timeout")
		}
	})
	go func() {
		<-session.Done()
		timer.Stop()
	}()
}

func (a *Actor) readPump(session *ws.Session) {
	defer func() {
		select {
		case a.detachChannel <- session:
		case <-a.shutdownCh:
		}
	}()

	_ = session.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	session.SetPongHandler(func(string) error {
		return session.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	})

	go a.pingLoop(session)

	for {
		_, data, err := session.ReadMessage()
		if err != nil {
			return
		}
		select {
		case a.frameChannel <- frameEvent{session: session, data: data}:
		case <-a.shutdownCh:
			return
		}
	}
}

func (a *Actor) pingLoop(session *ws.Session) {
	ticker := time.NewTicker(a.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := session.Ping(time.Now().Add(a.cfg.WriteTimeout)); err != nil {
				return
			}
		case <-session.Done():
			return
		case <-a.shutdownCh:
			return
		}
	}
}

// handleFrame accepts only auth frames; a notification channel is one-way.
func (a *Actor) handleFrame(session *ws.Session, data []byte) {
	var frame authFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Type != types.FrameAuth {
		return
	}

	identity, err := a.authenticate(frame.Token)
	if err != nil {
		log.Printf("Authentication rejected: user=%s err=%v", a.user, err)
		_ = session.WriteJSON(errorFrame{Error: "authentication failed"})
		go session.CloseAbnormal("authentication failed")
		return
	}

	session.SetIdentity(identity)
	log.Printf("User authenticated: channel=%s", a.user)
}

// authenticate verifies the token and enforces that its subject is the
// channel's user.
func (a *Actor) authenticate(token string) (*types.Identity, error) {
	identity, err := a.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	if identity.ID != a.user {
		return nil, ErrIdentityMismatch
	}
	return identity, nil
}

// Notify forwards a pre-encoded payload to every authenticated session.
func (a *Actor) Notify(ctx context.Context, payload []byte) error {
	req := notifyRequest{payload: payload, reply: make(chan error, 1)}

	select {
	case a.notifyChannel <- req:
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

// deliver writes the payload to each authenticated session, dropping dead
// ones. Runs on the event loop.
func (a *Actor) deliver(payload []byte) error {
	delivered := 0
	var dead []*ws.Session

	for session := range a.sessions {
		if !session.IsAuthenticated() {
			continue
		}
		if err := session.WriteRaw(payload); err != nil {
			dead = append(dead, session)
			continue
		}
		delivered++
	}

	for _, session := range dead {
		delete(a.sessions, session)
		_ = session.Close()
	}

	if delivered == 0 {
		return ErrNoActiveSessions
	}
	return nil
}
