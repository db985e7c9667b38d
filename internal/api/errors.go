package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reelgate/internal/logging"
	"reelgate/internal/services"
)

func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "invalid_transition", "out_of_order":
		return http.StatusConflict
	case "agent_failure", "storage":
		return http.StatusBadGateway
	case "timeout":
		return http.StatusGatewayTimeout
	case "configuration":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	kind := services.Kind(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		logging.WithContext(c.Request.Context(), s.logger).Warn("request failed",
			logging.String("path", c.FullPath()),
			logging.Int("status", code),
			logging.Error(err),
			logging.String(logging.FieldEventType, "api_request_failed"),
		)
	}
	c.AbortWithStatusJSON(code, ErrorResponse{Error: err.Error(), Kind: kind})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: message, Kind: "validation"})
}
