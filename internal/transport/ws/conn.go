package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cwrk-planet/live-quiz/internal/broadcast"
	"github.com/cwrk-planet/live-quiz/internal/metrics"
)

// wsConn — исходящая сторона соединения. Send не блокирует: сообщения копятся
// в буфере и пишутся отдельной горутиной; Close ставит close-кадр в очередь
// после уже принятых сообщений.
type wsConn struct {
	id            string
	participantID string
	conn          *websocket.Conn
	metrics       *metrics.Metrics
	cfg           Config

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string

	send chan broadcast.Message
	done chan struct{}
}

func newWsConn(c *websocket.Conn, participantID string, m *metrics.Metrics, cfg Config) *wsConn {
	return &wsConn{
		id:            uuid.NewString(),
		participantID: participantID,
		conn:          c,
		metrics:       m,
		cfg:           cfg,
		send:          make(chan broadcast.Message, cfg.SendBuffer),
		done:          make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(msg broadcast.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *wsConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.mu.Lock()
				code, reason := c.closeCode, c.closeReason
				c.mu.Unlock()
				frame := websocket.FormatCloseMessage(code, reason)
				_ = c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(c.cfg.WriteWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Debug("ws write failed", "participant_id", c.participantID, "err", err)
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
			c.metrics.MessageSent()
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// wait ждёт завершения writeLoop, но не дольше d; затем рвёт сокет.
func (c *wsConn) wait(d time.Duration) {
	select {
	case <-c.done:
	case <-time.After(d):
		_ = c.conn.Close()
	}
}

// SlowConsumer закрывает соединения, которые не успевают забирать события.
// Вызывается под локом группы, поэтому не трогает группу.
func SlowConsumer(m *metrics.Metrics) broadcast.DropFunc {
	return func(participantID string, c broadcast.Conn) {
		m.SlowConsumer()
		slog.Warn("ws send buffer full, closing connection", "participant_id", participantID)
		c.Close(websocket.CloseTryAgainLater, "slow consumer")
	}
}
