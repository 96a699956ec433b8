package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"identity-sync/internal/service"
)

// errorPayload es el sobre de error unificado de ambos handlers.
type errorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func errorEnvelope(kind, message, detail string) gin.H {
	return gin.H{
		"ok":    false,
		"error": errorPayload{Kind: kind, Message: message, Detail: detail},
	}
}

// statusForKind mapea clases de error a status HTTP: 401 identidad,
// 429 rate limit, 500 el resto.
func statusForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindAuthMissing:
		return http.StatusUnauthorized
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
