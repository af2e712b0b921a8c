package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/websocket"
	"github.com/Ahmedmecatronique/AquaWing/internal/broadcast"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/Ahmedmecatronique/AquaWing/internal/platform/correlation"
	apperrors "github.com/Ahmedmecatronique/AquaWing/internal/platform/errors"
)

const (
	pongWait = 2 * broadcast.DefaultPingInterval

	reasonAuthRequired  = "authentication required: invalid or expired session"
	reasonAuthUnchecked = "authentication required: session could not be verified"
	reasonSessionEnded  = "authentication required: session expired"
	reasonHubFull       = "server at capacity, try again later"
	reasonDeprecated    = "deprecated endpoint, use /ws"
)

func (s *Server) registerWebSocketRoutes() {
	s.echo.GET("/ws", s.handleWebSocket)
	s.echo.GET("/ws/telemetry", s.handleLegacyTelemetry)
}

// handleWebSocket upgrades before authenticating so that browsers can read
// the close code of a rejected connection.
func (s *Server) handleWebSocket(c echo.Context) error {
	ctx := c.Request().Context()
	ip := c.RealIP()

	if reason := s.limits.Acquire(ip); reason != "" {
		s.countRejection(string(reason))
		slog.WarnContext(ctx, "WebSocket connection refused", "reason", reason, "ip", ip)
		return apperrors.RateLimitedError("too many WebSocket connections").WithField("reason", string(reason))
	}
	defer s.limits.Release(ip)

	token := s.requestToken(c)

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		slog.DebugContext(ctx, "WebSocket upgrade failed", "ip", ip, "error", err)
		return nil
	}
	conn := websocket.NewConn(ws)
	ctx = correlation.WithConnID(ctx, conn.ID())

	identity, err := s.sessions.Validate(ctx, token)
	if err != nil {
		s.countRejection("auth")
		reason := reasonAuthRequired
		if !errors.Is(err, domain.ErrInvalidSession) {
			reason = reasonAuthUnchecked
		}
		slog.InfoContext(ctx, "WebSocket authentication failed", "ip", ip, "error", err)
		_ = conn.Close(broadcast.ClosePolicyViolation, reason)
		return nil
	}

	if err := s.hub.Register(conn, identity); err != nil {
		code, reason := broadcast.CloseTryAgainLater, reasonHubFull
		if errors.Is(err, domain.ErrHubStopped) {
			code, reason = broadcast.CloseGoingAway, broadcast.ReasonShutdown
		}
		slog.WarnContext(ctx, "WebSocket registration refused", "user", string(identity), "error", err)
		_ = conn.Close(code, reason)
		return nil
	}
	defer s.hub.Unregister(conn)

	slog.InfoContext(ctx, "WebSocket client connected", "user", string(identity), "ip", ip)

	conn.EnableKeepalive(pongWait)
	stopWatch := s.watchSession(ctx, conn, token)
	defer stopWatch()

	s.readCommands(ctx, conn, identity)

	slog.InfoContext(ctx, "WebSocket client disconnected", "user", string(identity))
	return nil
}

// readCommands feeds inbound frames to the command service until the peer
// goes away or the hub drops the connection. Replies go through the hub so
// they are ordered with telemetry.
func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, identity domain.Identity) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseGoingAway) {
				slog.DebugContext(ctx, "WebSocket read ended", "error", err)
			}
			return
		}

		cmdCtx := correlation.WithID(ctx, correlation.NewID())
		reply := s.commands.Handle(cmdCtx, identity, data)
		if err := s.hub.Send(conn, reply); err != nil {
			slog.DebugContext(cmdCtx, "Command reply not delivered", "error", err)
			return
		}
	}
}

// watchSession re-checks the token every AuthRevalidateInterval and closes
// the connection with 1008 once it no longer validates. A zero interval
// disables the check.
func (s *Server) watchSession(ctx context.Context, conn *websocket.Conn, token string) (stop func()) {
	interval := s.config.AuthRevalidateInterval
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := s.clock.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				if _, err := s.sessions.Validate(ctx, token); err != nil {
					slog.InfoContext(ctx, "Session no longer valid, closing connection", "error", err)
					_ = s.hub.Disconnect(conn, broadcast.ClosePolicyViolation, reasonSessionEnded)
					return
				}
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// handleLegacyTelemetry accepts the old endpoint only to tell clients to move.
func (s *Server) handleLegacyTelemetry(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	conn := websocket.NewConn(ws)
	slog.InfoContext(c.Request().Context(), "Deprecated telemetry endpoint used", "ip", c.RealIP())
	_ = conn.Close(broadcast.CloseNormalClosure, reasonDeprecated)
	return nil
}

func (s *Server) countRejection(reason string) {
	if s.hubMetrics != nil {
		s.hubMetrics.Rejections.WithLabelValues(reason).Inc()
	}
}
