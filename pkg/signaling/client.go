package signaling

import (
	"context"
	"sync"
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ClientOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendQueueSize  int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.WriteWait <= 0 {
		o.WriteWait = constants.DefaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = constants.DefaultPongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = constants.DefaultMaxMessageSize
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = constants.DefaultSendQueue
	}
	return o
}

// Client is a websocket connection registered with a Hub.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan *Envelope
	quit   chan struct{}
	once   sync.Once
	opts   ClientOptions
	logger *zap.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	opts = opts.withDefaults()
	id := utils.NewConnectionID()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan *Envelope, opts.SendQueueSize),
		quit:   make(chan struct{}),
		opts:   opts,
		logger: hub.logger.With(zap.String("connection", id)),
	}
}

// Serve registers conn with hub and starts its pumps. It returns once the
// connection is registered.
func Serve(ctx context.Context, hub *Hub, conn *websocket.Conn, opts ClientOptions) (*Client, error) {
	c := NewClient(hub, conn, opts)
	if err := hub.Register(ctx, c); err != nil {
		conn.Close()
		return nil, err
	}
	go c.WritePump()
	go c.ReadPump(context.WithoutCancel(ctx))
	return c, nil
}

func (c *Client) ID() string { return c.id }

// Deliver queues env without blocking. Envelopes for a closed client are
// discarded.
func (c *Client) Deliver(env *Envelope) bool {
	select {
	case <-c.quit:
		return true
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.quit) })
}

// ReadPump decodes frames and hands them to the hub until the connection
// fails. It must be the only reader of the connection.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		sig, err := Decode(data)
		if err != nil {
			c.hub.Reject(c, err)
			continue
		}
		if err := c.hub.Dispatch(ctx, c, sig); err != nil {
			c.logger.Debug("hub rejected dispatch", zap.Error(err))
			return
		}
	}
}

// WritePump writes queued envelopes and keepalive pings. It must be the only
// writer of the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			data, err := Encode(env)
			if err != nil {
				c.logger.Error("encode envelope", zap.String("type", env.Type), zap.Error(err))
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
