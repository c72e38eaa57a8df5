// Package response renders JSON bodies and classified errors for gin handlers.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comigor/jarvis-chat/internal/domain"
	"github.com/comigor/jarvis-chat/internal/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Success sends a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Status maps an error to its HTTP status.
func Status(err error) int {
	switch domain.KindOf(err) {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Body is the client-safe rendering of err. Wrapped causes stay in the logs.
func Body(err error) ErrorBody {
	var de *domain.Error
	if !errors.As(err, &de) {
		return ErrorBody{Error: "internal server error", Code: domain.KindInternal.String()}
	}
	code := de.Code
	if code == "" {
		code = de.Kind.String()
	}
	return ErrorBody{Error: de.Message, Code: code}
}

// Error logs err and writes it.
func Error(c *gin.Context, err error) {
	status := Status(err)
	log := logger.Ctx(c.Request.Context())
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int(logger.FieldStatus, status).Msg("request failed")
	} else {
		log.Debug().Err(err).Int(logger.FieldStatus, status).Msg("request rejected")
	}
	c.JSON(status, Body(err))
}

// Abort writes err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
