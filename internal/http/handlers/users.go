package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/geocoder89/identityhub/internal/actorctx"
	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/geocoder89/identityhub/internal/auth"
	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

type UserService interface {
	List(ctx context.Context, filter user.ListFilter) ([]user.Public, int, error)
	Get(ctx context.Context, id string) (user.Public, error)
	Update(ctx context.Context, actor *auth.Claims, id string, req user.UpdateRequest) (user.Public, error)
	Delete(ctx context.Context, actor *auth.Claims, id string) error
}

type UsersHandler struct {
	svc UserService
	log *slog.Logger
}

func NewUsersHandler(svc UserService, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{svc: svc, log: log}
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	filter := user.ListFilter{
		Page:  queryInt(ctx, "page"),
		Limit: queryInt(ctx, "limit"),
	}.Normalize()

	users, total, err := h.svc.List(ctx.Request.Context(), filter)
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	ctx.Header("X-Total-Count", strconv.Itoa(total))
	ctx.JSON(http.StatusOK, gin.H{
		"users": users,
		"pagination": gin.H{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	u, err := h.svc.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"user": u})
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	claims, ok := actorctx.ClaimsFrom(ctx.Request.Context())
	if !ok {
		RespondAppError(ctx, h.log, apperr.Unauthorized("Missing identity context"))
		return
	}

	req, ok := bindUpdateRequest(ctx)
	if !ok {
		return
	}

	u, err := h.svc.Update(ctx.Request.Context(), claims, ctx.Param("id"), req)
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "User updated successfully",
		"user":    u,
	})
}

func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	claims, ok := actorctx.ClaimsFrom(ctx.Request.Context())
	if !ok {
		RespondAppError(ctx, h.log, apperr.Unauthorized("Missing identity context"))
		return
	}

	err := h.svc.Delete(ctx.Request.Context(), claims, ctx.Param("id"))
	if err != nil {
		RespondAppError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// bindUpdateRequest rejects any body key outside user.UpdatableFields before
// decoding. A body carrying role or id fails as a whole.
func bindUpdateRequest(ctx *gin.Context) (user.UpdateRequest, bool) {
	var req user.UpdateRequest

	raw, err := ctx.GetRawData()
	if err != nil {
		respondBindError(ctx, err, &req)
		return req, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		respondBindError(ctx, err, &req)
		return req, false
	}

	var rejected []apperr.FieldError
	for key := range fields {
		if _, ok := user.UpdatableFields[key]; !ok {
			rejected = append(rejected, apperr.FieldError{
				Field:   key,
				Rule:    "not_updatable",
				Message: "cannot be changed through this endpoint",
			})
		}
	}
	if len(rejected) > 0 {
		sort.Slice(rejected, func(i, j int) bool { return rejected[i].Field < rejected[j].Field })
		RespondAppError(ctx, nil, apperr.FieldValidation("Request contains fields that cannot be updated", rejected...))
		return req, false
	}

	if err := json.Unmarshal(raw, &req); err != nil {
		respondBindError(ctx, err, &req)
		return req, false
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		respondBindError(ctx, err, &req)
		return req, false
	}

	return req, true
}

// queryInt returns 0 for a missing or non-numeric value; ListFilter.Normalize
// turns that into the default.
func queryInt(ctx *gin.Context, key string) int {
	n, err := strconv.Atoi(ctx.Query(key))
	if err != nil {
		return 0
	}
	return n
}
