// Package handler holds the gin handlers of the sync API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/erp/stocksync/internal/interfaces/http/dto"
)

// BaseHandler writes the dto.Response envelope. Handlers embed it.
type BaseHandler struct{}

// getRequestID prefers the ID set by the request ID middleware over the
// incoming header.
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted answers 202 for work handed to the background runner
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	resp := dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)).
		WithTraceID(telemetry.GetTraceID(c.Request.Context()))
	c.JSON(statusCode, resp)
}

// ErrorWithCode answers with the status registered for code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// DomainError classifies err and answers with its code. Unrecognised errors
// are recorded on the context and answered with the generic message.
func (h *BaseHandler) DomainError(c *gin.Context, message string, err error) {
	code := dto.ErrorCodeFor(err)
	if code == dto.ErrCodeInternal {
		h.InternalError(c, message, err)
		return
	}
	h.ErrorWithCode(c, code, err.Error())
}

func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeBadRequest, message)
}

func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.ErrorWithCode(c, dto.ErrCodeNotFound, message)
}

// InternalError keeps err on the context for the logging middleware and
// answers 500 without leaking it.
func (h *BaseHandler) InternalError(c *gin.Context, message string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	h.ErrorWithCode(c, dto.ErrCodeInternal, message)
}
