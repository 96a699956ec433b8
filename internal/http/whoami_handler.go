package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-sync/internal/config"
	"identity-sync/internal/identity"
	"identity-sync/internal/service"
	"identity-sync/internal/store"
)

// WhoamiHandler reporta estado de identidad, configuración y conectividad
// sin revelar valores de configuración.
type WhoamiHandler struct {
	logger *zap.Logger
	cfg    *config.Config
	store  store.Store
}

// NewWhoamiHandler crea una instancia de WhoamiHandler. El store puede ser
// nil cuando el gateway no está configurado; la sonda se salta.
func NewWhoamiHandler(logger *zap.Logger, cfg *config.Config, st store.Store) *WhoamiHandler {
	return &WhoamiHandler{
		logger: logger,
		cfg:    cfg,
		store:  st,
	}
}

// Whoami maneja GET /api/whoami. A diferencia de user-sync, un blob
// corrupto aquí es fatal; un blob ausente solo reporta loggedIn=false.
func (h *WhoamiHandler) Whoami(c *gin.Context) {
	var (
		loggedIn  bool
		userEmail *string
		userID    *string
	)

	if raw := c.GetHeader(IdentityContextHeader); raw != "" {
		idCtx, err := identity.Decode(raw)
		if err != nil {
			h.logger.Warn("identity context decode failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, errorEnvelope(string(service.KindUnexpected), err.Error(), ""))
			return
		}
		if idCtx.User != nil {
			loggedIn = true
			userEmail = idCtx.User.Email
			if idCtx.User.Sub != "" {
				sub := idCtx.User.Sub
				userID = &sub
			}
		}
	}

	var (
		storeOK     bool
		storeStatus *int
	)
	if h.store != nil {
		probe, err := h.store.Probe(c.Request.Context())
		if err != nil {
			// Un fallo de transporte en la sonda es fatal; solo la
			// configuración ausente salta la sonda en silencio.
			h.logger.Error("store probe failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, errorEnvelope(string(service.KindUnexpected), err.Error(), ""))
			return
		}
		storeOK = probe.OK
		if probe.HTTPStatus != 0 {
			status := probe.HTTPStatus
			storeStatus = &status
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"loggedIn":  loggedIn,
		"userEmail": userEmail,
		"userId":    userID,
		"env": gin.H{
			"hasSupabaseUrl": h.cfg.HasSupabaseURL(),
			"hasServiceKey":  h.cfg.HasServiceKey(),
		},
		"supabase": gin.H{
			"ok":         storeOK,
			"httpStatus": storeStatus,
		},
		"note": "if loggedIn=false the token is missing or invalid; if supabase.ok=false check env vars and store access",
	})
}
