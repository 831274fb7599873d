package api

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chefia/internal/apperrors"
	"chefia/internal/menu"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 64 * 1024
)

// wsMessage is the frame exchanged on the chat socket. Clients send
// {"question": "..."}; the server answers with chunk frames followed by
// one done or error frame.
type wsMessage struct {
	Type     string `json:"type,omitempty"`
	Content  string `json:"content,omitempty"`
	Error    string `json:"error,omitempty"`
	Question string `json:"question,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// wsClient maintains the WebSocket connection with the client
type wsClient struct {
	conn   *websocket.Conn
	send   chan wsMessage
	closed chan struct{}
}

// handleChatSocket streams chat answers over a WebSocket
func (s *Server) handleChatSocket(c *gin.Context) {
	id := sessionID(c)
	if _, err := s.sessions.Get(id); err != nil {
		s.fail(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan wsMessage, 64),
		closed: make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.writePump(cancel)
	s.readPump(ctx, client, id, c.GetHeader(apiKeyHeader))
}

// readPump answers questions one at a time until the client goes away
func (s *Server) readPump(ctx context.Context, client *wsClient, id, apiKey string) {
	defer close(client.send)

	client.conn.SetReadLimit(wsReadLimit)
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		var req wsMessage
		if err := client.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket error", "session_id", id, "error", err)
			}
			return
		}
		if req.APIKey != "" {
			apiKey = req.APIKey
		}
		s.streamAnswer(ctx, client, id, apiKey, req.Question)
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Server) streamAnswer(ctx context.Context, client *wsClient, id, apiKey, question string) {
	if strings.TrimSpace(question) == "" {
		client.push(wsMessage{Type: "error", Error: "question is required"})
		return
	}
	if !s.limiter.Allow(id) {
		client.push(wsMessage{Type: "error", Error: "too many model requests, try again in a minute"})
		return
	}

	in, err := s.prepareInsight(id, apiKey)
	if err != nil {
		client.push(wsMessage{Type: "error", Error: toAppError(err).Message})
		return
	}
	history, err := s.sessions.History(id)
	if err != nil {
		client.push(wsMessage{Type: "error", Error: toAppError(err).Message})
		return
	}

	table, err := menu.EncodeTable(menu.ChatContext(in.analysis.Items, s.cfg.Analysis.ChatContextRows))
	if err != nil {
		client.push(wsMessage{Type: "error", Error: toAppError(err).Message})
		return
	}

	llmCtx, cancel := s.llmContext(ctx)
	defer cancel()

	start := time.Now()
	answer, err := s.consultant.ChatStream(llmCtx, in.model, question, table, history, func(chunk string) error {
		if !client.push(wsMessage{Type: "chunk", Content: chunk}) {
			return apperrors.New(apperrors.CodeInternal, "client disconnected")
		}
		return nil
	})
	s.monitor.ObserveLLM(in.session.Provider, "chat_stream", start, err)
	if err != nil {
		client.push(wsMessage{Type: "error", Error: toAppError(llmError(llmCtx, err)).Message})
		return
	}

	if err := s.sessions.RecordExchange(id, question, answer); err != nil {
		s.logger.Error("failed to save chat exchange", "session_id", id, "error", err)
	}
	client.push(wsMessage{Type: "done", Content: answer})
}

// push queues msg for the writer. It reports false once the writer is gone.
func (c *wsClient) push(msg wsMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.closed:
		return false
	}
}

// writePump pumps messages from the server to the WebSocket connection
func (c *wsClient) writePump(cancel context.CancelFunc) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		close(c.closed)
		cancel()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
