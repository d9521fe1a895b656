package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "prod").With("Authorization", "Bearer abc.def.ghi")

	log.Info("login",
		"email", "sam@example.com",
		"password", "Passw0rdOK",
		slog.Group("req", slog.String("token", "abc.def.ghi")),
	)

	out := buf.String()
	assert.NotContains(t, out, "Passw0rdOK")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.Contains(t, out, "sam@example.com")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, redacted, line["password"])
	assert.Equal(t, redacted, line["Authorization"])
}

func TestNewLoggerTo_LevelByEnv(t *testing.T) {
	var buf bytes.Buffer

	NewLoggerTo(&buf, "prod").Debug("hidden")
	assert.Empty(t, buf.String())

	NewLoggerTo(&buf, "dev").Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestContextHandler_NoTraceWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerTo(&buf, "prod").InfoContext(context.Background(), "plain")
	assert.NotContains(t, buf.String(), "trace_id")
}
