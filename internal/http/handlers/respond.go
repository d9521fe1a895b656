package handlers

import (
	"log/slog"
	"net/http"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

// StatusFor maps an error kind to its HTTP status. Unknown kinds are 500.
func StatusFor(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, "invalid_request"
	case apperr.KindBadRequest:
		return http.StatusBadRequest, "bad_request"
	case apperr.KindInvalidCredentials:
		return http.StatusUnauthorized, "invalid_credentials"
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case apperr.KindForbidden:
		return http.StatusForbidden, "forbidden"
	case apperr.KindNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.KindConflict:
		return http.StatusConflict, "conflict"
	case apperr.KindInternal:
		return http.StatusInternalServerError, "internal_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// RespondAppError writes the error envelope for err. Internal faults are
// logged with their cause and reach the client only as a generic message.
func RespondAppError(ctx *gin.Context, log *slog.Logger, err error) {
	appErr := apperr.As(err)
	status, code := StatusFor(appErr.Kind)

	if appErr.Kind == apperr.KindInternal {
		if log == nil {
			log = slog.Default()
		}
		log.ErrorContext(ctx.Request.Context(), "request failed",
			"route", ctx.FullPath(),
			"request_id", requestIDFrom(ctx),
			"err", err,
		)
		RespondError(ctx, status, code, "Internal server error", nil)
		return
	}

	RespondError(ctx, status, code, appErr.Message, appErr.Details)
}

// AbortAppError is RespondAppError for middlewares.
func AbortAppError(ctx *gin.Context, log *slog.Logger, err error) {
	RespondAppError(ctx, log, err)
	ctx.Abort()
}
