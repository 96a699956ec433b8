package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"identity-sync/internal/identity"
	"identity-sync/internal/service"
)

// SyncHandler mantiene dependencias del endpoint de sincronización.
type SyncHandler struct {
	logger  *zap.Logger
	syncSvc *service.SyncService
}

// NewSyncHandler crea una instancia de SyncHandler.
func NewSyncHandler(logger *zap.Logger, syncSvc *service.SyncService) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		syncSvc: syncSvc,
	}
}

// UserSync maneja POST /api/user-sync. Un blob ausente y un blob sin
// user.sub son dos condiciones 401 distintas; un blob corrupto es 500.
func (h *SyncHandler) UserSync(c *gin.Context) {
	idCtx, err := identity.Decode(c.GetHeader(IdentityContextHeader))
	if errors.Is(err, identity.ErrNoContext) {
		c.JSON(http.StatusUnauthorized, errorEnvelope(string(service.KindAuthMissing), "unauthorized: no identity context", ""))
		return
	}
	if err != nil {
		h.logger.Warn("identity context decode failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorEnvelope(string(service.KindUnexpected), err.Error(), ""))
		return
	}

	id, err := idCtx.Verified()
	if err != nil {
		c.JSON(http.StatusUnauthorized, errorEnvelope(string(service.KindAuthMissing), "unauthorized: no user", ""))
		return
	}

	result, err := h.syncSvc.Sync(c.Request.Context(), id)
	if err != nil {
		var syncErr *service.SyncError
		if errors.As(err, &syncErr) {
			if syncErr.Kind == service.KindDownstream {
				h.logger.Error("sync failed", zap.String("subject", id.Subject), zap.Error(err))
			}
			c.JSON(statusForKind(syncErr.Kind), errorEnvelope(string(syncErr.Kind), syncErr.Message, syncErr.Detail))
			return
		}
		h.logger.Error("sync failed", zap.String("subject", id.Subject), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorEnvelope(string(service.KindUnexpected), err.Error(), ""))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"alreadySynced": result.Already,
		"userProfileId": result.ProfileID,
	})
}
