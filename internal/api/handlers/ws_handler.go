package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/okhamid/interviewly/internal/realtime"
	"github.com/okhamid/interviewly/internal/utils"
)

type WSHandler struct {
	manager  *realtime.Manager
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(manager *realtime.Manager, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		manager: manager,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteJSON(v)
}

// InterviewWS owns one live session connection. Binary frames are audio,
// text frames are control messages; outbound events stream back as JSON.
// Audio format is negotiated at connection start via sample_rate/channels
// query params (defaults 16000/1).
func (h *WSHandler) InterviewWS(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.InterviewWS", "missing session_id", nil))
		return
	}

	sampleRate, _ := strconv.Atoi(c.Query("sample_rate"))
	channels, _ := strconv.Atoi(c.Query("channels"))

	connID := uuid.NewString()
	orch, err := h.manager.Register(c.Request.Context(), connID, sessionID, int32(sampleRate), int32(channels))
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote a response in most cases
		h.manager.Unregister(connID)
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}

	// writer: orchestrator events -> WS; exits when teardown closes the stream
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for ev := range orch.Events() {
			if werr := wc.writeJSON(ev); werr != nil {
				return
			}
		}
	}()

	// reader: WS -> manager dispatch
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch mt {
		case websocket.BinaryMessage:
			if derr := h.manager.DispatchAudio(connID, data); derr != nil {
				h.log.WithError(derr).WithField("connection_id", connID).Warn("audio dispatch failed")
			}
		case websocket.TextMessage:
			if derr := h.manager.DispatchControl(connID, data); derr != nil {
				h.log.WithError(derr).WithField("connection_id", connID).Warn("control dispatch failed")
			}
		}
	}

	h.manager.Unregister(connID)

	// let the writer drain the teardown events before closing the socket
	select {
	case <-writerDone:
	case <-time.After(5 * time.Second):
	}
}
