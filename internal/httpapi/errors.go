package httpapi

import (
	"errors"
	"net/http"

	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

var statusByCode = map[string]int{
	apperrors.ErrCodeConfiguration:         http.StatusServiceUnavailable,
	apperrors.ErrCodeUpstreamUnavailable:   http.StatusServiceUnavailable,
	apperrors.ErrCodeUpstreamTimeout:       http.StatusGatewayTimeout,
	apperrors.ErrCodeExecutionTimeout:      http.StatusGatewayTimeout,
	apperrors.ErrCodeUpstreamError:         http.StatusBadGateway,
	apperrors.ErrCodeEmptyUpstreamResponse: http.StatusBadGateway,
	apperrors.ErrCodeMalformedToolCall:     http.StatusBadGateway,
	apperrors.ErrCodeUnknownTool:           http.StatusUnprocessableEntity,
	apperrors.ErrCodeInvalidArguments:      http.StatusUnprocessableEntity,
	apperrors.ErrCodeInputNotFound:         http.StatusNotFound,
	apperrors.ErrCodeNotFound:              http.StatusNotFound,
	apperrors.ErrCodeInvalidInput:          http.StatusBadRequest,
	apperrors.ErrCodeExecutionFailed:       http.StatusInternalServerError,
	apperrors.ErrCodeMalformedOutput:       http.StatusInternalServerError,
	apperrors.ErrCodePersistence:           http.StatusInternalServerError,
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	if status, ok := statusByCode[apperrors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	// ContextID is set on chat failures so the client can look up the
	// partial history of the request.
	ContextID string         `json:"contextId,omitempty"`
	Message   string         `json:"message"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
}

func errorResponse(err error) ErrorResponse {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return ErrorResponse{Message: err.Error()}
	}

	resp := ErrorResponse{Message: appErr.Message, Code: appErr.Code}
	if len(appErr.Details) > 0 || appErr.Cause != nil {
		resp.Details = make(map[string]any, len(appErr.Details)+1)
		for k, v := range appErr.Details {
			resp.Details[k] = v
		}
		if appErr.Cause != nil {
			resp.Details["cause"] = appErr.Cause.Error()
		}
	}
	return resp
}
