// Package observer implements the §6 optional telemetry channel: a JSON-RPC
// 2.0 stream of per-generation search events, published over a websocket so
// an external dashboard can watch a run live instead of tailing logs.
// Grounded on cmd/kanso-lsp/main.go's wiring of commonlog for transport-level
// logging; generalised from that binary's glsp/jsonrpc2-over-stdio language
// server loop to a jsonrpc2-over-websocket notification stream, since a
// search run has no requests to answer, only events to emit.
package observer

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/tliron/commonlog"
)

// Configure wires commonlog's default backend at the given verbosity, the
// same call the teacher's language server makes at startup. maxLevel
// follows commonlog's convention: higher means more verbose; nil registers
// no additional sinks beyond stderr.
func Configure(maxLevel int) {
	commonlog.Configure(maxLevel, nil)
}

// Event is one notification point in a search run, serialised as a
// JSON-RPC 2.0 notification whose method name is Kind.
type Event struct {
	Kind       string      `json:"-"`
	Generation int         `json:"generation"`
	Payload    interface{} `json:"payload,omitempty"`
}

const (
	EventGeneration     = "generation"
	EventCounterexample = "counterexample"
	EventDone           = "done"
)

// websocketStream adapts a *websocket.Conn to jsonrpc2.ObjectStream, since
// the jsonrpc2 package ships transports for io.ReadWriteCloser and raw
// net.Conn but not gorilla's message-framed websocket API directly.
type websocketStream struct {
	conn *websocket.Conn
}

func (s websocketStream) WriteObject(obj interface{}) error {
	return s.conn.WriteJSON(obj)
}

func (s websocketStream) ReadObject(v interface{}) error {
	return s.conn.ReadJSON(v)
}

func (s websocketStream) Close() error {
	return s.conn.Close()
}

// Channel publishes Events to every currently-connected observer. A Channel
// with no connections silently drops events - the telemetry channel is
// strictly optional per §6, never load-bearing for the search itself.
type Channel struct {
	upgrader websocket.Upgrader
	conns    chan *jsonrpc2.Conn
	active   []*jsonrpc2.Conn
}

// NewChannel builds an empty telemetry channel ready to accept websocket
// upgrades via ServeHTTP.
func NewChannel() *Channel {
	return &Channel{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(chan *jsonrpc2.Conn, 8),
	}
}

// ServeHTTP upgrades an incoming request to a websocket and registers it as
// a telemetry observer for the lifetime of the connection.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	stream := websocketStream{conn: ws}
	conn := jsonrpc2.NewConn(r.Context(), stream, jsonrpc2.HandlerWithError(discardRequests))
	c.conns <- conn
}

// discardRequests answers nothing: observers only ever receive
// notifications, never issue requests the search driver must respond to.
func discardRequests(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	return nil, nil
}

// Publish sends ev as a JSON-RPC notification to every connection
// registered so far, pruning any that have gone away. A 2-second
// per-connection timeout keeps one stalled observer from blocking a
// generation's publish.
func (c *Channel) Publish(ctx context.Context, ev Event) {
	c.drainPending()
	live := c.active[:0]
	for _, conn := range c.active {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.Notify(pctx, ev.Kind, ev)
		cancel()
		if err == nil {
			live = append(live, conn)
		}
	}
	c.active = live
}

func (c *Channel) drainPending() {
	for {
		select {
		case conn := <-c.conns:
			c.active = append(c.active, conn)
		default:
			return
		}
	}
}

// Close disconnects every registered observer.
func (c *Channel) Close() {
	c.drainPending()
	for _, conn := range c.active {
		conn.Close()
	}
	c.active = nil
}
