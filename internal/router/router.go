package router

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"wardline/internal/dispatch"
	"wardline/internal/notify"
	"wardline/internal/registry"
	"wardline/internal/room"
	"wardline/pkg/interfaces"
	"wardline/pkg/types"
)

// maxBodyBytes bounds HTTP request bodies; socket frames carry their own cap.
const maxBodyBytes = 1 << 20

// Router maps the HTTP surface onto actors: WebSocket upgrades resolve an
// actor through the supervisor, POST endpoints run control operations on it.
type Router struct {
	supervisor  *registry.Supervisor
	dispatcher  *dispatch.Dispatcher
	store       interfaces.RecordStore
	internalKey string
	startTime   time.Time
	mux         *mux.Router
}

// New builds the router with all routes registered.
func New(supervisor *registry.Supervisor, dispatcher *dispatch.Dispatcher, store interfaces.RecordStore, internalKey string) *Router {
	rt := &Router{
		supervisor:  supervisor,
		dispatcher:  dispatcher,
		store:       store,
		internalKey: internalKey,
		startTime:   time.Now(),
		mux:         mux.NewRouter(),
	}
	rt.routes()
	return rt
}

func (rt *Router) routes() {
	rt.mux.Use(corsMiddleware)

	rt.mux.HandleFunc("/ws/rooms/{room}", rt.handleRoomSocket).Methods(http.MethodGet)
	rt.mux.HandleFunc("/ws/calls/{room}", rt.handleRoomSocket).Methods(http.MethodGet)
	rt.mux.HandleFunc("/ws/users/{user}", rt.handleUserSocket).Methods(http.MethodGet)

	api := rt.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rooms/{room}/broadcast", rt.handleRoomBroadcast).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/rooms/{room}/call-end", rt.handleCallEnd).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/rooms/{room}/call-invitation", rt.handleCallInvitation).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/rooms/{room}/event", rt.handleRoomEvent).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/users/{user}/broadcast-notification", rt.handleUserNotification).Methods(http.MethodPost, http.MethodOptions)

	rt.mux.HandleFunc("/broadcast-alert", rt.handleBroadcastAlert).Methods(http.MethodPost, http.MethodOptions)
	rt.mux.HandleFunc("/health", rt.handleHealth).Methods(http.MethodGet)
	rt.mux.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	rt.mux.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no such route")
	})
	rt.mux.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Internal-Auth")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: status})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (rt *Router) roomActor(w http.ResponseWriter, r *http.Request) (*room.Actor, bool) {
	name := mux.Vars(r)["room"]
	actor, err := rt.supervisor.GetRoom(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return actor, true
}

func (rt *Router) notifyActor(w http.ResponseWriter, r *http.Request) (*notify.Actor, bool) {
	user := mux.Vars(r)["user"]
	actor, err := rt.supervisor.GetNotifier(user)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return actor, true
}

func (rt *Router) handleRoomSocket(w http.ResponseWriter, r *http.Request) {
	actor, ok := rt.roomActor(w, r)
	if !ok {
		return
	}
	actor.ServeWS(w, r)
}

func (rt *Router) handleUserSocket(w http.ResponseWriter, r *http.Request) {
	actor, ok := rt.notifyActor(w, r)
	if !ok {
		return
	}
	actor.ServeWS(w, r)
}

func (rt *Router) handleRoomBroadcast(w http.ResponseWriter, r *http.Request) {
	actor, ok := rt.roomActor(w, r)
	if !ok {
		return
	}

	var alert types.Alert
	if !decodeBody(w, r, &alert) {
		return
	}

	if err := actor.BroadcastAlert(r.Context(), &alert); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "broadcast", "id": alert.ID})
}

func (rt *Router) handleCallEnd(w http.ResponseWriter, r *http.Request) {
	actor, ok := rt.roomActor(w, r)
	if !ok {
		return
	}

	var payload room.EventPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.CallID == "" {
		writeError(w, http.StatusBadRequest, "callId is required")
		return
	}

	if err := actor.EndCall(r.Context(), payload.CallID, payload.Duration); err != nil {
		if errors.Is(err, room.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, "call not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended", "callId": payload.CallID})
}

func (rt *Router) handleCallInvitation(w http.ResponseWriter, r *http.Request) {
	actor, ok := rt.roomActor(w, r)
	if !ok {
		return
	}

	var payload room.EventPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.CallID == "" {
		writeError(w, http.StatusBadRequest, "callId is required")
		return
	}

	if err := actor.AddCallInvitation(r.Context(), payload); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded", "callId": payload.CallID})
}

type eventRequest struct {
	Type string `json:"type"`
	room.EventPayload
}

func (rt *Router) handleRoomEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := rt.roomActor(w, r)
	if !ok {
		return
	}

	var event eventRequest
	if !decodeBody(w, r, &event) {
		return
	}

	if err := actor.HandleEvent(r.Context(), event.Type, event.EventPayload); err != nil {
		switch {
		case errors.Is(err, room.ErrUnknownEventType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, room.ErrMessageNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed", "type": event.Type})
}

func (rt *Router) handleUserNotification(w http.ResponseWriter, r *http.Request) {
	actor, ok := rt.notifyActor(w, r)
	if !ok {
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !json.Valid(payload) {
		writeError(w, http.StatusBadRequest, "payload must be JSON")
		return
	}

	if err := actor.Notify(r.Context(), payload); err != nil {
		if errors.Is(err, notify.ErrNoActiveSessions) {
			writeError(w, http.StatusNotFound, "no connected sessions for user")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

type outcomeResponse struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Error  string `json:"error,omitempty"`
}

func (rt *Router) handleBroadcastAlert(w http.ResponseWriter, r *http.Request) {
	provided := r.Header.Get("X-Internal-Auth")
	if rt.internalKey == "" ||
		subtle.ConstantTimeCompare([]byte(provided), []byte(rt.internalKey)) != 1 {
		writeError(w, http.StatusUnauthorized, interfaces.ErrUnauthorized.Error())
		return
	}

	var req dispatch.Request
	if !decodeBody(w, r, &req) {
		return
	}

	outcomes, err := rt.dispatcher.Dispatch(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := make([]outcomeResponse, len(outcomes))
	for i, outcome := range outcomes {
		results[i] = outcomeResponse{Kind: outcome.Kind, Target: outcome.Target, Error: outcome.Error()}
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "dispatched", "outcomes": results})
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":  "healthy",
		"uptime":  time.Since(rt.startTime).String(),
		"actors":  rt.supervisor.Stats(),
		"version": "1.0.0",
	}

	status := http.StatusOK
	if rt.store != nil {
		if err := rt.store.HealthCheck(r.Context()); err != nil {
			health["status"] = "unhealthy"
			health["database"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			health["database"] = "ok"
		}
	}

	writeJSON(w, status, health)
}
