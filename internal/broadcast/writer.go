package broadcast

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/metrics"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/jonboulle/clockwork"
)

// clientWriter is the only goroutine that writes data frames to its connection.
type clientWriter struct {
	conn     Conn
	identity domain.Identity
	clock    clockwork.Clock
	metrics  *metrics.HubMetrics

	writeTimeout time.Duration
	pingInterval time.Duration

	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	failed      atomic.Bool
	onFailure   func(reason string)
}

func newClientWriter(conn Conn, identity domain.Identity, cfg Config, clock clockwork.Clock, m *metrics.HubMetrics, onFailure func(reason string)) *clientWriter {
	cw := &clientWriter{
		conn:         conn,
		identity:     identity,
		clock:        clock,
		metrics:      m,
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
		sendChannel:  make(chan []byte, cfg.SendBuffer),
		doneChannel:  make(chan struct{}),
		onFailure:    onFailure,
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

// enqueue hands msg to the writer without blocking. It reports false when the
// queue is full or the writer has already failed.
func (cw *clientWriter) enqueue(msg []byte) bool {
	if cw.failed.Load() {
		return false
	}
	select {
	case cw.sendChannel <- msg:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(cw.pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			start := cw.clock.Now()
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(msg); err != nil {
				cw.fail("write_error")
				return
			}
			cw.metrics.SendDuration.Observe(cw.clock.Since(start).Seconds())
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.conn.WritePing(); err != nil {
				cw.metrics.PingFailures.Inc()
				cw.fail("ping_failed")
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// fail marks the writer dead and asks the hub to remove it. The callback runs
// on its own goroutine because the hub may be waiting on this writer.
func (cw *clientWriter) fail(reason string) {
	select {
	case <-cw.doneChannel:
		return
	default:
	}
	if cw.failed.CompareAndSwap(false, true) && cw.onFailure != nil {
		slog.Debug("Client writer failed", "conn_id", cw.conn.ID(), "identity", cw.identity, "reason", reason)
		go cw.onFailure(reason)
	}
}

// stop closes the connection with code and waits for the writer to exit.
// Closing first unblocks a write that is stuck on a slow peer.
func (cw *clientWriter) stop(code int, reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.conn.Close(code, reason)
	})
	cw.wg.Wait()
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(cw.writeTimeout))
}
