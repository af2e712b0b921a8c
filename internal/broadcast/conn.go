package broadcast

import "time"

// Close codes from RFC 6455.
const (
	CloseNormalClosure   = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseTryAgainLater   = 1013
)

const (
	ReasonShutdown = "server shutting down"
	ReasonSlow     = "send queue full"
)

const DefaultPingInterval = 30 * time.Second

// Conn is a transport handle owned by the hub once registered.
// Close must be safe to call concurrently with WriteMessage and must make a
// blocked WriteMessage return promptly.
type Conn interface {
	ID() string
	SetWriteDeadline(t time.Time) error
	WriteMessage(data []byte) error
	WritePing() error
	Close(code int, reason string) error
}
