package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_Length(t *testing.T) {
	assert.Len(t, NewID(), 8)
}

func TestNewID_Unique(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		ids[NewID()] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestID_Roundtrip(t *testing.T) {
	ctx := WithID(context.Background(), "abc12345")
	id, ok := ID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc12345", id)

	_, ok = ID(context.Background())
	assert.False(t, ok)

	_, ok = ID(WithID(context.Background(), ""))
	assert.False(t, ok)
}

func TestEnsure(t *testing.T) {
	ctx := WithID(context.Background(), "keepme00")
	id, _ := ID(Ensure(ctx))
	assert.Equal(t, "keepme00", id)

	id, ok := ID(Ensure(context.Background()))
	assert.True(t, ok)
	assert.Len(t, id, 8)
}

func TestHandler_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx := WithConnID(WithID(context.Background(), "deadbeef"), "conn-1")
	logger.InfoContext(ctx, "hello")

	out := buf.String()
	assert.Contains(t, out, "correlation_id=deadbeef")
	assert.Contains(t, out, "conn_id=conn-1")
}

func TestHandler_NoAttributesWithoutContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil)))

	logger.Info("plain")

	assert.NotContains(t, buf.String(), "correlation_id")
	assert.NotContains(t, buf.String(), "conn_id")
}

func TestHandler_WithAttrsKeepsInjection(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil))).With("component", "hub")

	logger.InfoContext(WithID(context.Background(), "cafebabe"), "tick")

	assert.Contains(t, buf.String(), "component=hub")
	assert.Contains(t, buf.String(), "correlation_id=cafebabe")
}
