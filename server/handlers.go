package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/agentrt/core"
)

// Error codes used in error bodies.
const (
	CodeValidation  = "validation_error"
	CodeExecution   = "execution_error"
	CodeTimeout     = "timeout"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal_error"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Feedback reports whether a previously returned result was correct.
type Feedback struct {
	Confidence float64 `json:"confidence"`
	Correct    bool    `json:"correct"`
}

func (s *Server) handleExecute(c echo.Context) error {
	var req core.Request
	if err := c.Bind(&req); err != nil {
		return writeError(c, &core.ValidationError{Message: "malformed request body"})
	}

	res, err := s.svc.Execute(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleCapabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.GetCapabilities())
}

func (s *Server) handleHealth(c echo.Context) error {
	status := s.svc.HealthCheck(c.Request().Context())

	code := http.StatusOK
	if status.Status == core.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}

	return c.JSON(code, status)
}

func (s *Server) handleFeedback(c echo.Context) error {
	var fb Feedback
	if err := c.Bind(&fb); err != nil {
		return writeError(c, &core.ValidationError{Message: "malformed feedback body"})
	}

	if fb.Confidence < 0 || fb.Confidence > 1 {
		return writeError(c, &core.ValidationError{Field: "confidence", Message: "must be within [0,1]"})
	}

	if err := s.svc.RecordOutcome(c.Request().Context(), fb.Confidence, fb.Correct); err != nil {
		return writeError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}

		_ = c.JSON(he.Code, ErrorBody{Error: ErrorDetail{Code: CodeInternal, Message: msg}})

		return
	}

	_ = writeError(c, err)
}

// StatusFor maps an error onto an HTTP status and error code.
func StatusFor(err error) (int, string) {
	var (
		ve *core.ValidationError
		ee *core.ExecutionError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, CodeValidation
	case errors.As(err, &ee):
		return http.StatusInternalServerError, CodeExecution
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, core.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func errorBody(err error) (int, ErrorBody) {
	status, code := StatusFor(err)
	return status, ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}}
}

func writeError(c echo.Context, err error) error {
	status, body := errorBody(err)
	return c.JSON(status, body)
}
