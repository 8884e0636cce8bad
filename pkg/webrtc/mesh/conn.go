package mesh

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/LingByte/TutorConnect/pkg/constants"
	"github.com/LingByte/TutorConnect/pkg/signaling"
	"github.com/bytedance/sonic"
	"github.com/carlmjohnson/requests"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// Conn is the client side of the signaling websocket.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex // serializes writers
}

// Dial opens the signaling websocket at url (ws:// or wss://).
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Send implements Signaler.
func (c *Conn) Send(env *signaling.Envelope) error {
	data, err := sonic.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(constants.DefaultWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Run reads frames and hands them to handle until the connection closes or ctx
// is cancelled. Handler errors are passed to onError and do not stop the loop.
func (c *Conn) Run(ctx context.Context, handle func(*signaling.Envelope) error, onError func(error)) error {
	stop := context.AfterFunc(ctx, func() { c.ws.Close() })
	defer stop()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var env signaling.Envelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			if onError != nil {
				onError(fmt.Errorf("decode frame: %w", err))
			}
			continue
		}
		if err := handle(&env); err != nil && onError != nil {
			onError(err)
		}
	}
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

// ICEServersResponse is the body of GET /api/ice-servers.
type ICEServersResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

// FetchICEServers asks the signaling server which ICE servers to use.
func FetchICEServers(ctx context.Context, baseURL string) ([]webrtc.ICEServer, error) {
	var resp ICEServersResponse
	err := requests.
		URL(baseURL).
		Path("/api/ice-servers").
		Accept("application/json").
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ice servers: %w", err)
	}
	return resp.ICEServers, nil
}
