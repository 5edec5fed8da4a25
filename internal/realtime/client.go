package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/retro-board/internal/errs"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from the peer.
	maxMessageSize = 1024 * 1024 // 1MB

	// A command ack not received within this window is a hard failure.
	ackTimeout = 10 * time.Second
)

// Handler receives every server-pushed event in arrival order.
type Handler func(event string, data json.RawMessage)

type ackResult struct {
	data json.RawMessage
	err  error
}

// Client is the websocket side of the realtime channel. Reconnect policy is
// the caller's concern: a closed client is done, dial a new one.
type Client struct {
	conn    *websocket.Conn
	handler Handler
	log     *zap.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan ackResult

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the channel endpoint with a bearer token and starts the
// read and ping pumps. handler may be nil when only commands are needed.
func Dial(ctx context.Context, url, accessToken string, handler Handler, log *zap.Logger) (*Client, error) {
	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errs.ErrUnauthorized
		}
		return nil, fmt.Errorf("dial realtime channel: %w", err)
	}

	c := &Client{
		conn:    conn,
		handler: handler,
		log:     log,
		pending: make(map[string]chan ackResult),
		closed:  make(chan struct{}),
	}
	go c.readPump()
	go c.pingPump()
	return c, nil
}

// Close tears the connection down and fails all pending commands.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()

		c.pendingMu.Lock()
		for id, ch := range c.pending {
			ch <- ackResult{err: errors.New("connection closed")}
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	})
	return err
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.closed }

func (c *Client) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("realtime channel read failed", zap.Error(err))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.log.Warn("malformed channel message", zap.Error(err))
			continue
		}

		if env.Event == eventAck {
			c.resolveAck(env)
			continue
		}
		if c.handler != nil {
			c.handler(env.Event, env.Data)
		}
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) resolveAck(env Envelope) {
	c.pendingMu.Lock()
	ch, ok := c.pending[env.ID]
	if ok {
		delete(c.pending, env.ID)
	}
	c.pendingMu.Unlock()
	if !ok {
		c.log.Debug("ack with no pending command", zap.String("id", env.ID))
		return
	}

	if env.Error != "" {
		ch <- ackResult{err: errors.New(env.Error)}
		return
	}
	ch <- ackResult{data: env.Data}
}

// request emits one command and waits for its single acknowledgement within
// ackTimeout.
func (c *Client) request(ctx context.Context, command string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", command, err)
	}

	id := uuid.Must(uuid.NewV4()).String()
	ch := make(chan ackResult, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	env := Envelope{Event: command, ID: id, Data: data}
	encoded, err := json.Marshal(env)
	if err != nil {
		c.abandon(id)
		return nil, err
	}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, encoded)
	c.writeMu.Unlock()
	if err != nil {
		c.abandon(id)
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	timer := time.NewTimer(ackTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.data, res.err
	case <-timer.C:
		c.abandon(id)
		return nil, errs.ErrAckTimeout
	case <-ctx.Done():
		c.abandon(id)
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *Client) abandon(id string) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// JoinBoard subscribes this connection to one board's event room.
func (c *Client) JoinBoard(ctx context.Context, boardID int64) error {
	if boardID <= 0 {
		return errors.New("validation: boardID must be positive")
	}
	data, err := c.request(ctx, CommandBoardJoin, map[string]int64{"boardId": boardID})
	if err != nil {
		return err
	}

	var ack struct {
		Joined  bool  `json:"joined"`
		BoardID int64 `json:"boardId"`
	}
	if err := json.Unmarshal(data, &ack); err != nil || !ack.Joined || ack.BoardID != boardID {
		return fmt.Errorf("%w: invalid join ack", errs.ErrInvalidPayload)
	}
	return nil
}

// RenameBoard issues the rename command and returns the acknowledged board
// payload for the caller to merge.
func (c *Client) RenameBoard(ctx context.Context, boardID int64, name string) (json.RawMessage, error) {
	if boardID <= 0 {
		return nil, errors.New("validation: boardID must be positive")
	}
	if name == "" {
		return nil, errors.New("validation: empty board name")
	}
	return c.request(ctx, CommandBoardRename, map[string]any{"boardId": boardID, "name": name})
}

// ReorderColumns issues the column reorder command and returns the
// acknowledged column order payload.
func (c *Client) ReorderColumns(ctx context.Context, boardID int64, oldIndex, newIndex int) (json.RawMessage, error) {
	if boardID <= 0 {
		return nil, errors.New("validation: boardID must be positive")
	}
	if oldIndex < 0 || newIndex < 0 {
		return nil, errors.New("validation: negative column index")
	}
	return c.request(ctx, CommandBoardColumnsReorder, map[string]any{
		"boardId":  boardID,
		"oldIndex": oldIndex,
		"newIndex": newIndex,
	})
}
