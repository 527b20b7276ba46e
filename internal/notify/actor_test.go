package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"wardline/internal/auth"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": userID,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func newTestActor(t *testing.T, user string, authTimeout time.Duration) (*Actor, *httptest.Server) {
	t.Helper()
	cfg := &Config{
		AuthTimeout:  authTimeout,
		BufferSize:   32,
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	actor := NewActor(user, cfg, auth.NewVerifier(testSecret))
	if err := actor.Start(context.Background()); err != nil {
		t.Fatalf("starting actor: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(actor.ServeWS))
	t.Cleanup(func() {
		server.Close()
		_ = actor.Stop()
	})
	return actor, server
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNotifyActor_ForwardsVerbatim(t *testing.T) {
	actor, server := newTestActor(t, "u1", 10*time.Second)
	conn := dial(t, server, "?token="+signToken(t, "u1"))

	payload := []byte(`{"type":"alert_notification","alert":{"id":"a1","message":"code blue"}}`)

	// Delivery can race the attach; retry until the session is registered.
	deadline := time.Now().Add(2 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		err = actor.Notify(context.Background(), payload)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading notification: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("payload altered in transit:\n got %s\nwant %s", data, payload)
	}
}

func TestNotifyActor_AuthFrame(t *testing.T) {
	actor, server := newTestActor(t, "u1", 10*time.Second)
	conn := dial(t, server, "")

	if err := conn.WriteJSON(map[string]string{"type": "auth", "token": signToken(t, "u1")}); err != nil {
		t.Fatalf("sending auth: %v", err)
	}

	payload := []byte(`{"type":"alert_notification"}`)
	deadline := time.Now().Add(2 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		err = actor.Notify(context.Background(), payload)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("notify after auth frame: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, readErr := conn.ReadMessage()
	if readErr != nil {
		t.Fatalf("reading notification: %v", readErr)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if frame["type"] != "alert_notification" {
		t.Errorf("type = %v, want alert_notification", frame["type"])
	}
}

func TestNotifyActor_WrongUserRejected(t *testing.T) {
	_, server := newTestActor(t, "u1", 10*time.Second)
	conn := dial(t, server, "")

	if err := conn.WriteJSON(map[string]string{"type": "auth", "token": signToken(t, "intruder")}); err != nil {
		t.Fatalf("sending auth: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("expected error frame before close, got %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if frame["error"] != "authentication failed" {
		t.Errorf("error = %v, want authentication failed", frame["error"])
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestNotifyActor_AuthTimeoutClosesSocket(t *testing.T) {
	_, server := newTestActor(t, "u1", 100*time.Millisecond)
	conn := dial(t, server, "")

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close after timeout, got %v", err)
	}
}

func TestNotifyActor_NoSessions(t *testing.T) {
	actor, _ := newTestActor(t, "u1", 10*time.Second)

	err := actor.Notify(context.Background(), []byte(`{}`))
	if err != ErrNoActiveSessions {
		t.Fatalf("notify error = %v, want ErrNoActiveSessions", err)
	}
}
