package room

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"wardline/internal/metrics"
	ws "wardline/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   4096,
	WriteBufferSize:  4096,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades an HTTP request and hands the socket to the event loop.
// A valid token query parameter authenticates the connection before the
// first frame; otherwise the client must send an auth frame.
func (a *Actor) ServeWS(w http.ResponseWriter, r *http.Request) {
	a.mu.RLock()
	running := a.running
	a.mu.RUnlock()
	if !running {
		http.Error(w, "room unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Upgrade failed: room=%s err=%v", a.name, err)
		return
	}

	session := ws.NewSession(conn, a.cfg.BufferSize, a.cfg.WriteTimeout)
	metrics.ConnectionsTotal.WithLabelValues("room").Inc()

	if token := r.URL.Query().Get("token"); token != "" {
		identity, err := a.verifier.Verify(token)
		if err != nil {
			log.Printf("Authentication rejected: room=%s err=%v", a.name, err)
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

	go a.readPump(session)
}

// readPump owns the socket's read side: it enforces the heartbeat deadline
// and feeds frames to the event loop until the connection dies.
func (a *Actor) readPump(session *ws.Session) {
	defer a.enqueueDetach(session)

	_ = session.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	session.SetPongHandler(func(string) error {
		return session.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	})

	go a.pingLoop(session)

	for {
		_, data, err := session.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Connection closed unexpectedly: room=%s err=%v", a.name, err)
			}
			return
		}
		if err := a.enqueueFrame(session, data); err != nil {
			return
		}
	}
}

// pingLoop sends heartbeat pings until the session ends.
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
