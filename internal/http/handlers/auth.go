package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/geocoder89/identityhub/internal/service"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	Login(ctx context.Context, req user.LoginRequest) (service.LoginResult, error)
	Register(ctx context.Context, req user.RegisterRequest) (user.Public, error)
}

type LoginMetrics interface {
	ObserveLogin(result string)
}

type noopLoginMetrics struct{}

func (noopLoginMetrics) ObserveLogin(string) {}

// bcrypt at the configured cost dominates both endpoints
const authTimeout = 5 * time.Second

type AuthHandler struct {
	svc     AuthService
	metrics LoginMetrics
	log     *slog.Logger
}

func NewAuthHandler(svc AuthService, metrics LoginMetrics, log *slog.Logger) *AuthHandler {
	if metrics == nil {
		metrics = noopLoginMetrics{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{svc: svc, metrics: metrics, log: log}
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest

	if !BindJSON(ctx, &req) {
		h.metrics.ObserveLogin("invalid_input")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	res, err := h.svc.Login(cctx, req)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindInvalidCredentials:
			h.metrics.ObserveLogin("invalid_credentials")
		case apperr.KindValidation:
			h.metrics.ObserveLogin("invalid_input")
		default:
			h.metrics.ObserveLogin("error")
		}
		RespondAppError(ctx, h.log, err)
		return
	}

	h.metrics.ObserveLogin("success")

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   res.Token,
		"user":    res.User,
	})
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), authTimeout)
	defer cancel()

	u, err := h.svc.Register(cctx, req)
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    u,
	})
}
