package handler

import (
	"log"
	"net/http"

	"opencanvas-service/apperror"

	"github.com/gin-gonic/gin"
)

func statusOf(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Internal errors are reported with
// fallback as the message; the cause is only exposed in development.
func (h *Handler) fail(c *gin.Context, err error, fallback string) {
	kind := apperror.KindOf(err)
	status := statusOf(kind)

	message := apperror.MessageOf(err)
	if kind == apperror.KindInternal {
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		message = fallback
	} else {
		log.Printf("[WARN] %s %s: %s", c.Request.Method, c.FullPath(), message)
	}

	body := gin.H{"success": false, "message": message}
	if h.Development {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	h.fail(c, apperror.Validation("%s", message), message)
}
