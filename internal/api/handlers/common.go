package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"tradegate/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodyBytes предел размера тела запроса
const maxBodyBytes = 1 << 20

// Коды ошибок API
const (
	CodeInvalidJSON     = "INVALID_JSON"
	CodeValidation      = "VALIDATION_ERROR"
	CodeBlocked         = "RISK_BLOCKED"
	CodeSinkUnavailable = "SINK_UNAVAILABLE"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrEmptyBody тело запроса отсутствует
var ErrEmptyBody = errors.New("request body is empty")

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	OK     bool               `json:"ok"`
	Error  string             `json:"error"`
	Code   string             `json:"code,omitempty"`
	Fields []utils.FieldError `json:"fields,omitempty"`
}

// validate общий валидатор DTO; имена полей берутся из json-тегов
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// writeJSON пишет ответ с заданным статусом
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.L().Warn("response encode failed", utils.Err(err))
	}
}

// writeError пишет ErrorResponse
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// writeValidationError пишет 400 с разбивкой по полям
func writeValidationError(w http.ResponseWriter, message string, fields utils.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:  message,
		Code:   CodeValidation,
		Fields: fields,
	})
}

// decodeJSON читает тело запроса в dst; пустое тело - ErrEmptyBody
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// decodeAndValidate декодирует тело и проверяет теги validate.
//
// При ошибке ответ уже отправлен, вызывающему остаётся вернуть управление.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidJSON, err.Error())
		return false
	}
	if fields := validateStruct(dst); fields.HasErrors() {
		writeValidationError(w, "invalid request", fields)
		return false
	}
	return true
}

// validateStruct переводит ошибки validator в utils.ValidationErrors
func validateStruct(v interface{}) utils.ValidationErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var out utils.ValidationErrors
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("body", err.Error())
		return out
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), describeTag(fe))
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be > " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
