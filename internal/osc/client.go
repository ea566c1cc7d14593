// Package osc implements the AbletonOSC control protocol client.
//
// AbletonOSC listens on UDP port 11000 and delivers replies to a second
// local UDP port (11001 by default). Replies carry the same OSC address as
// the request, which is how this client matches them to pending queries.
package osc

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
)

// ErrTimeout is returned when Live does not answer a query within the
// configured wait.
var ErrTimeout = fmt.Errorf("no reply from Live")

// DefaultQueryTimeout bounds how long a single query waits for its reply.
const DefaultQueryTimeout = 2 * time.Second

// replyAddresses is the full set of addresses this client ever queries.
// Each one gets a dispatcher handler at construction time; AbletonOSC never
// replies on an address that was not requested.
var replyAddresses = []string{
	"/live/test",
	"/live/song/get/num_tracks",
	"/live/song/get/tempo",
	"/live/track/get/name",
	"/live/track/get/mute",
	"/live/track/get/is_foldable",
	"/live/track/get/is_grouped",
	"/live/track/get/group_track",
	"/live/track/get/arrangement_clips/name",
	"/live/track/get/arrangement_clips/start_time",
	"/live/track/get/arrangement_clips/length",
	"/live/track/get/num_clip_slots",
	"/live/clip_slot/get/has_clip",
	"/live/clip/get/name",
	"/live/clip/get/length",
}

// Options configures a Client.
type Options struct {
	Host         string
	SendPort     int
	ReceivePort  int
	QueryTimeout time.Duration
}

// Client is a request/response OSC client. It is owned by the caller and
// passed explicitly into every operation that needs session data; there is
// no package-level shared instance.
type Client struct {
	opts   Options
	sender *goosc.Client
	conn   net.PacketConn
	server *goosc.Server

	// Queries are strictly serialized: one outstanding request per client.
	queryMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan []interface{}
}

// Dial creates a client and starts the reply receiver. Close must be called
// to release the receive socket.
func Dial(opts Options) (*Client, error) {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.SendPort == 0 {
		opts.SendPort = 11000
	}
	if opts.ReceivePort == 0 {
		opts.ReceivePort = 11001
	}
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}

	c := &Client{
		opts:    opts,
		sender:  goosc.NewClient(opts.Host, opts.SendPort),
		pending: make(map[string]chan []interface{}),
	}

	dispatcher := goosc.NewStandardDispatcher()
	for _, addr := range replyAddresses {
		addr := addr
		if err := dispatcher.AddMsgHandler(addr, func(msg *goosc.Message) {
			c.handleReply(msg.Address, msg.Arguments)
		}); err != nil {
			return nil, fmt.Errorf("failed to register OSC handler for %s: %w", addr, err)
		}
	}

	listenAddr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.ReceivePort))
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s for OSC replies: %w", listenAddr, err)
	}
	c.conn = conn
	c.server = &goosc.Server{Addr: listenAddr, Dispatcher: dispatcher}

	go func() {
		if err := c.server.Serve(conn); err != nil {
			slog.Debug("OSC receiver stopped", "error", err)
		}
	}()

	slog.Debug("OSC client ready", "host", opts.Host, "send_port", opts.SendPort, "receive_port", opts.ReceivePort)
	return c, nil
}

// Close shuts down the reply receiver.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// handleReply routes an incoming message to the query waiting on its address.
// Unsolicited messages are dropped.
func (c *Client) handleReply(address string, args []interface{}) {
	c.mu.Lock()
	ch, ok := c.pending[address]
	if ok {
		delete(c.pending, address)
	}
	c.mu.Unlock()

	if !ok {
		slog.Debug("Dropping unsolicited OSC message", "address", address)
		return
	}
	ch <- args
}

// Send dispatches a message without waiting for a reply.
func (c *Client) Send(address string, args ...interface{}) error {
	msg := goosc.NewMessage(address)
	for _, a := range args {
		msg.Append(a)
	}
	if err := c.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", address, err)
	}
	return nil
}

// Query sends a message and waits for the reply delivered on the same
// address. Returns ErrTimeout when Live stays silent past the configured
// bound.
func (c *Client) Query(address string, args ...interface{}) ([]interface{}, error) {
	c.queryMu.Lock()
	defer c.queryMu.Unlock()

	ch := make(chan []interface{}, 1)
	c.mu.Lock()
	c.pending[address] = ch
	c.mu.Unlock()

	if err := c.Send(address, args...); err != nil {
		c.mu.Lock()
		delete(c.pending, address)
		c.mu.Unlock()
		return nil, err
	}

	timer := time.NewTimer(c.opts.QueryTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, address)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, address, c.opts.QueryTimeout)
	}
}

// TestConnection checks whether AbletonOSC is responding at all.
func (c *Client) TestConnection() bool {
	_, err := c.Query("/live/test")
	return err == nil
}

// OSC argument coercion. AbletonOSC replies mix int32, float32, string and
// bool depending on the Live property queried.

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int:
		return n, true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	default:
		if n, ok := toInt(v); ok {
			return n != 0, true
		}
	}
	return false, false
}

func toString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
