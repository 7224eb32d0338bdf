package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"strategy-databank/internal/api/models"
	"strategy-databank/internal/search"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 12,
	WriteBufferSize: 1 << 12,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsSession is one WebSocket client. It runs at most one search at a time.
type wsSession struct {
	h    *DatabankHandler
	conn *websocket.Conn
	ctx  context.Context

	writeMu sync.Mutex

	mu      sync.Mutex
	current *search.Handle
	wg      sync.WaitGroup
}

// Websocket handles GET /api/v1/databank/ws.
// Clients send {"action":"start","request":{...}} and then "pause", "resume"
// or "stop"; every search event is pushed back as a JSON text message.
func (h *DatabankHandler) Websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	s := &wsSession{h: h, conn: conn, ctx: ctx}
	defer s.wg.Wait()
	defer cancel()

	for {
		var msg models.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}
		s.handle(msg)
	}
}

func (s *wsSession) handle(msg models.WSMessage) {
	switch msg.Action {
	case "start":
		s.start(msg.Request)
	case "pause", "resume", "stop":
		s.mu.Lock()
		cur := s.current
		s.mu.Unlock()
		if cur == nil || cur.State().Terminal() {
			s.writeError("NO_ACTIVE_SEARCH", "no search is running on this connection")
			return
		}
		switch msg.Action {
		case "pause":
			cur.Pause()
		case "resume":
			cur.Resume()
		default:
			cur.Stop()
		}
	default:
		s.writeError("INVALID_REQUEST", "unknown action "+msg.Action)
	}
}

func (s *wsSession) start(req *models.DatabankRequest) {
	if req == nil {
		s.writeError("INVALID_REQUEST", "start requires a request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && !s.current.State().Terminal() {
		s.writeError("SEARCH_RUNNING", "a search is already running on this connection")
		return
	}
	in, params, err := s.h.buildSearch(req)
	if err != nil {
		s.writeError("INVALID_PARAMS", err.Error())
		return
	}

	handle := s.h.registry.Create()
	s.current = handle
	names := in.Names()
	log.Info().Str("search_id", handle.ID()).Int("strategies", len(in.Strategies)).Msg("websocket search requested")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.h.registry.Remove(handle.ID())
		for ev := range s.h.driver.Run(s.ctx, handle, in, params) {
			if err := s.write(models.ToEvent(ev, names)); err != nil {
				log.Warn().Err(err).Str("search_id", handle.ID()).Msg("websocket write failed")
				return
			}
		}
	}()
}

func (s *wsSession) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(v)
}

func (s *wsSession) writeError(code, message string) {
	if err := s.write(models.NewError(code, message)); err != nil {
		log.Warn().Err(err).Msg("websocket write failed")
	}
}
