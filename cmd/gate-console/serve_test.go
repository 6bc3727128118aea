// ABOUTME: Tests for serve wiring helpers and the colorized log handler
// ABOUTME: Token expiry warnings, transport and notifier selection, log formatting

package main

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/gate-console/internal/config"
	"github.com/2389/gate-console/internal/gatectl"
	"github.com/2389/gate-console/internal/store"
	"github.com/2389/gate-console/internal/transport"
)

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "console",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestWarnTokenExpiry(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"missing", "", "no API token configured"},
		{"expired", signedToken(t, now.Add(-time.Hour)), "API token has expired"},
		{"expiring", signedToken(t, now.Add(time.Hour)), "API token expires soon"},
		{"fresh", signedToken(t, now.Add(30*24*time.Hour)), ""},
		{"opaque", "not-a-jwt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := bufferLogger()
			warnTokenExpiry(tt.token, now, logger)
			if tt.want == "" {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestBuildTransport(t *testing.T) {
	logger, _ := bufferLogger()

	tr, err := buildTransport(config.TransportConfig{Kind: config.TransportNATS, URL: "nats://127.0.0.1:4222"}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &transport.NATS{}, tr)

	tr, err = buildTransport(config.TransportConfig{Kind: config.TransportWebSocket, URL: "ws://127.0.0.1/ws"}, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &transport.WebSocket{}, tr)

	_, err = buildTransport(config.TransportConfig{Kind: "carrier-pigeon"}, nil, logger)
	assert.Error(t, err)
}

func TestBuildGateController(t *testing.T) {
	ctl, closeFn, err := buildGateController(config.GateControlConfig{
		BaseURL:     "http://127.0.0.1:9",
		Health:      config.HealthHTTP,
		PingTimeout: time.Second,
		OpenTimeout: time.Second,
	})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &gatectl.HTTPController{}, ctl)

	// grpc.NewClient does not dial, so this succeeds without a server.
	ctl, closeFn, err = buildGateController(config.GateControlConfig{
		BaseURL:     "http://127.0.0.1:9",
		Health:      config.HealthGRPC,
		GRPCAddr:    "127.0.0.1:9",
		PingTimeout: time.Second,
		OpenTimeout: time.Second,
	})
	require.NoError(t, err)
	defer closeFn()
	assert.NotNil(t, ctl)
}

func TestBuildDispatcher(t *testing.T) {
	logger, _ := bufferLogger()
	st := store.NewMockStore()

	var out bytes.Buffer
	d, err := buildDispatcher(config.NotifyConfig{
		QueueSize: 4,
		Slack:     config.SlackConfig{Enabled: true, WebhookURL: "http://127.0.0.1:9/hook"},
	}, st, newPresenter(&out), &out, logger)
	require.NoError(t, err)
	d.Close()

	d, err = buildDispatcher(config.NotifyConfig{
		QueueSize: 4,
		Matrix:    config.MatrixConfig{Enabled: true, Homeserver: "http://127.0.0.1:9", UserID: "@c:example.org", AccessToken: "tok", RoomID: "!r:example.org"},
	}, st, newPresenter(&out), &out, logger)
	require.NoError(t, err)
	d.Close()
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.With("component", "console").Warn("transport lost", "gate_id", "G1", "note", "two words")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, " WRN [console] transport lost gate_id=G1 note=\"two words\"\n")
}

func TestConsoleHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, slog.LevelDebug, false))

	logger.WithGroup("gate").With("id", "G2").Debug("probe", slog.Group("result", "ack", false))

	out := buf.String()
	assert.Contains(t, out, " DBG probe gate.id=G2 gate.result.ack=false\n")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("hello", "n", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
