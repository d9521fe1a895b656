package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/identityhub/internal/auth"
	"github.com/geocoder89/identityhub/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	SecretHeader     = "x-secret-challenge"
	SecretQueryParam = "secret"
)

type GateAuthorizer interface {
	Authorize(headerSecret, querySecret, authorization string) (auth.Channel, error)
}

type StatsSource interface {
	Snapshot(ctx context.Context) (service.Stats, error)
}

type GateMetrics interface {
	ObserveGateDecision(channel string)
}

type noopGateMetrics struct{}

func (noopGateMetrics) ObserveGateDecision(string) {}

type SecretHandler struct {
	gate    GateAuthorizer
	stats   StatsSource
	metrics GateMetrics
	log     *slog.Logger
}

func NewSecretHandler(gate GateAuthorizer, stats StatsSource, metrics GateMetrics, log *slog.Logger) *SecretHandler {
	if metrics == nil {
		metrics = noopGateMetrics{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &SecretHandler{gate: gate, stats: stats, metrics: metrics, log: log}
}

// GetStats serves operational stats to any caller that passes the gate.
func (h *SecretHandler) GetStats(ctx *gin.Context) {
	channel, err := h.gate.Authorize(
		ctx.GetHeader(SecretHeader),
		ctx.Query(SecretQueryParam),
		ctx.GetHeader("Authorization"),
	)
	h.metrics.ObserveGateDecision(string(channel))

	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	h.log.InfoContext(ctx.Request.Context(), "gate opened", "channel", string(channel))

	stats, err := h.stats.Snapshot(ctx.Request.Context())
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	ctx.Header("Cache-Control", "no-cache")
	ctx.JSON(http.StatusOK, stats)
}
