// Package handlers implements the thin HTTP boundary over the storage,
// engine, and tool layers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/nodeflow/storage"
	"github.com/BaSui01/nodeflow/types"
)

// Response is the uniform API response envelope.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo is the serialized error payload.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response body.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes an error envelope, mapping error codes to HTTP status.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	code := types.ErrInternalError
	message := "internal error"
	status := http.StatusInternalServerError

	var structured *types.Error
	switch {
	case errors.As(err, &structured):
		code = structured.Code
		message = structured.Message
		status = statusForCode(structured.Code)
	case errors.Is(err, storage.ErrNotFound):
		code = types.ErrNotFound
		message = err.Error()
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		code = types.ErrInvalidRequest
		message = err.Error()
		status = http.StatusBadRequest
	default:
		message = err.Error()
	}

	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}

	WriteJSON(w, status, Response{
		Success:   false,
		Error:     &ErrorInfo{Code: string(code), Message: message},
		Timestamp: time.Now(),
	})
}

func statusForCode(code types.ErrorCode) int {
	switch code {
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrInvalidRequest, types.ErrGraphIntegrity, types.ErrNoTrigger,
		types.ErrUnknownType, types.ErrToolValidation:
		return http.StatusBadRequest
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into target.
func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return types.NewError(types.ErrInvalidRequest, "malformed request body").WithCause(err)
	}
	return nil
}
