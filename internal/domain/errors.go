package domain

import "errors"

var (
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrHubFull            = errors.New("hub is at client capacity")
	ErrHubStopped         = errors.New("hub is stopped")
	ErrUnknownConnection  = errors.New("connection is not registered")
	ErrInvalidRoute       = errors.New("route has no waypoints")
	ErrInvalidSpeed       = errors.New("speed must be a positive finite number")
)
