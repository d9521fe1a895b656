package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError = apperr.FieldError

// BindJSON decodes and validates the request body into out. On failure the
// error response is already written and false is returned.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	if err := ctx.ShouldBindJSON(out); err != nil {
		respondBindError(ctx, err, out)
		return false
	}
	return true
}

func respondBindError(ctx *gin.Context, err error, out interface{}) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
		return
	}

	RespondAppError(ctx, nil, bindError(err, out))
}

// bindError turns a decode or validation failure into a Validation error.
// Fields are reported by their json keys, never by Go names, and the raw
// decoder message is not echoed back.
func bindError(err error, out interface{}) *apperr.Error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		t := structType(out)
		fields := make([]FieldError, 0, len(validationErrs))

		for _, fe := range validationErrs {
			fields = append(fields, FieldError{
				Field:   jsonKey(t, fe.StructField()),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: ruleMessage(fe.Tag(), fe.Param()),
			})
		}
		return apperr.FieldValidation("Invalid request body", fields...)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		// encoding/json already reports the path in json keys
		field := strings.TrimSpace(typeErr.Field)
		return apperr.Validation("Invalid request body", gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
			}},
		})
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return apperr.Validation("Invalid request body", gin.H{"json": "invalid_json_syntax"})
	}

	if errors.Is(err, io.EOF) {
		return apperr.Validation("Request body is required", nil)
	}

	return apperr.Validation("Invalid request body", nil)
}

func structType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

// jsonKey maps a Go field name of the request struct to its json key.
func jsonKey(t reflect.Type, goName string) string {
	if t == nil {
		return goName
	}
	sf, ok := t.FieldByName(goName)
	if !ok {
		return goName
	}

	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return goName
	}
	return name
}

func ruleMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param + " characters"
	case "max":
		return "must be at most " + param + " characters"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
