package broadcast

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/metrics"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	commandTimeout   = 5 * time.Second
	stopTimeout      = 10 * time.Second
	commandQueueSize = 256
)

type Config struct {
	MaxClients   int
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxClients:   1000,
		SendBuffer:   16,
		WriteTimeout: 5 * time.Second,
		PingInterval: DefaultPingInterval,
	}
}

// Result reports the outcome of one fan-out pass.
type Result struct {
	Delivered int
	Evicted   int
}

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	conn     Conn
	identity domain.Identity
	reply    chan error
}

type removeCmd struct {
	baseHubCmd
	conn   Conn
	code   int
	reason string
	cause  string
	reply  chan bool
}

type sendCmd struct {
	baseHubCmd
	conn  Conn
	data  []byte
	reply chan error
}

type broadcastCmd struct {
	baseHubCmd
	data  []byte
	reply chan Result
}

type countCmd struct {
	baseHubCmd
	reply chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub owns the set of live connections.
type Hub struct {
	cmdCh   chan hubCmd
	clock   clockwork.Clock
	cfg     Config
	metrics *metrics.HubMetrics

	clients map[Conn]*clientWriter

	closers  sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(cfg Config, clock clockwork.Clock, m *metrics.HubMetrics) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, commandQueueSize),
		clock:   clock,
		cfg:     cfg,
		metrics: m,
		clients: make(map[Conn]*clientWriter),
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

// Register moves conn into the live set. Registering a connection twice is a
// no-op. It fails with domain.ErrHubFull at capacity; the caller still owns
// conn in that case.
func (h *Hub) Register(conn Conn, identity domain.Identity) error {
	reply := make(chan error, 1)
	if err := h.submit(registerCmd{conn: conn, identity: identity, reply: reply}); err != nil {
		return err
	}
	return awaitReply(h, reply, func(err error) error { return err })
}

// Unregister removes conn and closes it normally. Unknown connections are ignored.
func (h *Hub) Unregister(conn Conn) {
	_, _ = h.remove(conn, CloseNormalClosure, "", "client_gone")
}

// Disconnect removes conn and closes it with code and reason. It returns
// domain.ErrUnknownConnection if conn was not registered.
func (h *Hub) Disconnect(conn Conn, code int, reason string) error {
	removed, err := h.remove(conn, code, reason, "disconnect")
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrUnknownConnection
	}
	return nil
}

// Send queues data for a single connection, keeping it ordered with broadcasts.
// A full queue evicts the connection.
func (h *Hub) Send(conn Conn, data []byte) error {
	reply := make(chan error, 1)
	if err := h.submit(sendCmd{conn: conn, data: data, reply: reply}); err != nil {
		return err
	}
	return awaitReply(h, reply, func(err error) error { return err })
}

// Broadcast queues data for every registered connection. Connections that
// cannot accept it are removed after the pass.
func (h *Hub) Broadcast(data []byte) (Result, error) {
	reply := make(chan Result, 1)
	if err := h.submit(broadcastCmd{data: data, reply: reply}); err != nil {
		return Result{}, err
	}
	var res Result
	err := awaitReply(h, reply, func(r Result) error { res = r; return nil })
	return res, err
}

// ClientCount returns the number of registered connections, or -1 if the hub
// did not answer.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	if err := h.submit(countCmd{reply: reply}); err != nil {
		return -1
	}
	n := -1
	_ = awaitReply(h, reply, func(v int) error { n = v; return nil })
	return n
}

// Running reports whether the hub still accepts commands.
func (h *Hub) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Stop closes every connection with CloseGoingAway and shuts the actor down.
// It blocks until the connections are closed or a timeout is reached.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		if err := h.submit(stopCmd{}); err != nil {
			return
		}

		timeout := h.clock.NewTimer(stopTimeout)
		defer timeout.Stop()

		select {
		case <-h.done:
		case <-timeout.Chan():
			slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
			return
		}

		closed := make(chan struct{})
		go func() {
			h.closers.Wait()
			close(closed)
		}()
		select {
		case <-closed:
			slog.Info("Hub stopped gracefully")
		case <-timeout.Chan():
			slog.Warn("Hub stop timed out waiting for connections to close", "timeout", stopTimeout)
		}
	})
}

func (h *Hub) remove(conn Conn, code int, reason, cause string) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.submit(removeCmd{conn: conn, code: code, reason: reason, cause: cause, reply: reply}); err != nil {
		return false, err
	}
	var removed bool
	err := awaitReply(h, reply, func(r bool) error { removed = r; return nil })
	return removed, err
}

func (h *Hub) submit(cmd hubCmd) error {
	select {
	case <-h.done:
		return domain.ErrHubStopped
	default:
	}
	select {
	case h.cmdCh <- cmd:
		return nil
	case <-h.done:
		return domain.ErrHubStopped
	}
}

func awaitReply[T any](h *Hub, reply <-chan T, handle func(T) error) error {
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case v := <-reply:
		return handle(v)
	case <-h.done:
		return domain.ErrHubStopped
	case <-timer.Chan():
		return fmt.Errorf("hub command timed out after %v", commandTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAll(CloseGoingAway, "internal error")
		}
	}()

	depthTicker := h.clock.NewTicker(time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(h.cmdCh)
			h.metrics.CommandDepth.Set(float64(depth))
			if depth > commandQueueSize*4/5 {
				slog.Warn("Hub command channel near capacity", "depth", depth, "capacity", cap(h.cmdCh))
			}

		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				c.reply <- h.handleRegister(c)
			case removeCmd:
				c.reply <- h.removeClient(c.conn, c.code, c.reason, c.cause)
			case sendCmd:
				c.reply <- h.handleSend(c)
			case broadcastCmd:
				c.reply <- h.handleBroadcast(c.data)
			case countCmd:
				c.reply <- len(h.clients)
			case stopCmd:
				h.handleStop()
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) error {
	if _, exists := h.clients[c.conn]; exists {
		return nil
	}

	if len(h.clients) >= h.cfg.MaxClients {
		slog.Warn("Rejecting client: hub at capacity", "conn_id", c.conn.ID(), "max_clients", h.cfg.MaxClients)
		h.metrics.Rejections.WithLabelValues("hub_full").Inc()
		return domain.ErrHubFull
	}

	conn := c.conn
	h.clients[conn] = newClientWriter(conn, c.identity, h.cfg, h.clock, h.metrics, func(reason string) {
		_, _ = h.remove(conn, CloseGoingAway, "", reason)
	})

	h.metrics.Registrations.Inc()
	h.metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client registered", "conn_id", conn.ID(), "identity", c.identity, "total_clients", len(h.clients))
	return nil
}

func (h *Hub) handleSend(c sendCmd) error {
	cw, ok := h.clients[c.conn]
	if !ok {
		return domain.ErrUnknownConnection
	}
	if !cw.enqueue(c.data) {
		h.removeClient(c.conn, CloseTryAgainLater, ReasonSlow, "slow_client")
		return fmt.Errorf("connection %s evicted: send queue full", c.conn.ID())
	}
	h.metrics.MessagesQueued.Inc()
	return nil
}

// handleBroadcast enqueues to every client first and removes the ones that
// could not take the message afterwards, so one stuck client never delays or
// skips the others.
func (h *Hub) handleBroadcast(data []byte) Result {
	start := h.clock.Now()
	defer func() {
		h.metrics.BroadcastDuration.Observe(h.clock.Since(start).Seconds())
	}()

	var res Result
	var failed []Conn
	for conn, cw := range h.clients {
		if cw.enqueue(data) {
			res.Delivered++
			continue
		}
		failed = append(failed, conn)
	}
	h.metrics.MessagesQueued.Add(float64(res.Delivered))

	for _, conn := range failed {
		slog.Warn("Disconnecting slow client", "conn_id", conn.ID())
		if h.removeClient(conn, CloseTryAgainLater, ReasonSlow, "slow_client") {
			res.Evicted++
		}
	}
	return res
}

// removeClient deletes conn from the live set and closes it in the background.
// It reports whether conn was registered.
func (h *Hub) removeClient(conn Conn, code int, reason, cause string) bool {
	cw, ok := h.clients[conn]
	if !ok {
		return false
	}
	delete(h.clients, conn)

	h.closers.Add(1)
	go func() {
		defer h.closers.Done()
		cw.stop(code, reason)
	}()

	h.metrics.Evictions.WithLabelValues(cause).Inc()
	h.metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client removed", "conn_id", conn.ID(), "cause", cause, "remaining_clients", len(h.clients))
	return true
}

func (h *Hub) handleStop() {
	total := len(h.clients)
	slog.Info("Hub shutting down", "total_clients", total)
	h.closeAll(CloseGoingAway, ReasonShutdown)
	slog.Info("Hub shutdown complete", "disconnected_clients", total)
}

func (h *Hub) closeAll(code int, reason string) {
	for conn := range h.clients {
		h.removeClient(conn, code, reason, "shutdown")
	}
}
