package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	apperrors "github.com/Ahmedmecatronique/AquaWing/internal/platform/errors"
)

const contextKeyIdentity = "identity"

func (s *Server) registerAuthRoutes(loginLimiter echo.MiddlewareFunc) {
	s.echo.POST("/login", s.handleLogin, loginLimiter)
	s.echo.POST("/logout", s.handleLogout)
	s.echo.GET("/logout", s.handleLogout)
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid login request")
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.ValidationError("username and password are required")
	}

	identity, err := s.credentials.Verify(req.Username, req.Password)
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return apperrors.UnauthorizedError("invalid username or password").WithField("username", req.Username)
	}
	if err != nil {
		return apperrors.InternalError("failed to verify credentials", err)
	}

	session, err := s.sessions.Create(ctx, identity)
	if err != nil {
		return apperrors.InternalError("failed to create session", err)
	}

	if err := s.saveSessionCookie(c, session.Token); err != nil {
		return apperrors.InternalError("failed to save session cookie", err)
	}

	slog.InfoContext(ctx, "User logged in", "user", string(identity))

	resp := loginResponse{
		Success:   true,
		Message:   "Login successful",
		Token:     session.Token,
		ExpiresAt: session.CreatedAt.Add(s.sessions.Timeout()),
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleLogout always succeeds; an unknown or missing token leaves nothing to revoke.
func (s *Server) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()

	if token := s.requestToken(c); token != "" {
		if err := s.sessions.Destroy(ctx, token); err != nil {
			slog.WarnContext(ctx, "Failed to destroy session", "error", err)
		}
	}

	if session, err := s.cookieStore.Get(c.Request(), sessionName); err == nil {
		session.Options.MaxAge = -1
		delete(session.Values, sessionKeyToken)
		if err := session.Save(c.Request(), c.Response()); err != nil {
			slog.WarnContext(ctx, "Failed to clear session cookie", "error", err)
		}
	}

	if err := c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Logged out"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// requireAuth admits requests carrying a live session token.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := s.sessions.Validate(c.Request().Context(), s.requestToken(c))
		if errors.Is(err, domain.ErrInvalidSession) {
			return apperrors.UnauthorizedError("authentication required")
		}
		if err != nil {
			return apperrors.UnavailableError("session store unavailable", err)
		}

		c.Set(contextKeyIdentity, identity)
		return next(c)
	}
}

// requestToken prefers an explicit Bearer header over the session cookie, so a
// stale cookie left in the browser cannot shadow a valid token.
func (s *Server) requestToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}

	if session, err := s.cookieStore.Get(c.Request(), sessionName); err == nil {
		if token, ok := session.Values[sessionKeyToken].(string); ok && token != "" {
			return token
		}
	}
	return ""
}

func (s *Server) saveSessionCookie(c echo.Context, token string) error {
	// A stale or tampered cookie yields a fresh session alongside the error.
	session, _ := s.cookieStore.Get(c.Request(), sessionName)
	session.Values[sessionKeyToken] = token
	return session.Save(c.Request(), c.Response())
}
