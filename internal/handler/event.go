package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/efreitasn/custodex/internal/eventlog"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// EventHandler serves the event log over HTTP and websocket.
type EventHandler struct {
	log      *eventlog.Log
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(log *eventlog.Log, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		log:    log,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// eventListResponse is the JSON response for GET /events.
type eventListResponse struct {
	Events  []eventlog.Envelope `json:"events"`
	LastSeq uint64              `json:"last_seq"`
}

// parseSince reads the since query param, defaulting to 0.
func parseSince(r *http.Request) (uint64, bool) {
	s := r.URL.Query().Get("since")
	if s == "" {
		return 0, true
	}
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// List handles GET /events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	since, ok := parseSince(r)
	if !ok {
		WriteError(w, http.StatusBadRequest, "validation_error", "since must be a non-negative integer")
		return
	}

	limit := defaultEventLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}
	if limit < 1 || limit > maxEventLimit {
		WriteError(w, http.StatusBadRequest, "validation_error", "limit must be between 1 and 1000")
		return
	}

	events := h.log.Since(since, limit)
	WriteJSON(w, http.StatusOK, eventListResponse{
		Events:  events,
		LastSeq: h.log.LastSeq(),
	})
}

// Stream handles GET /events/stream. It upgrades to a websocket, replays
// the events after since, then pushes every new event as a JSON text
// message until the client goes away.
func (h *EventHandler) Stream(w http.ResponseWriter, r *http.Request) {
	since, ok := parseSince(r)
	if !ok {
		WriteError(w, http.StatusBadRequest, "validation_error", "since must be a non-negative integer")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Subscribe before replaying so nothing appended in between is lost.
	events, cancel := h.log.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	sent := since
	for _, env := range h.log.Since(since, 0) {
		if err := writeEnvelope(conn, env); err != nil {
			return
		}
		sent = env.Seq
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-events:
			if !ok {
				return
			}
			if env.Seq <= sent {
				continue
			}
			if err := writeEnvelope(conn, env); err != nil {
				h.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
			sent = env.Seq
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// readPump drains client frames so pongs and close frames are processed,
// and closes done when the connection fails.
func (h *EventHandler) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEnvelope(conn *websocket.Conn, env eventlog.Envelope) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(env)
}
