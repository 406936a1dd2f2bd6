package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mizan/internal/application/entitlement"
	"mizan/internal/shared/constants"
	"mizan/internal/shared/logger"
	"mizan/internal/shared/utils"
)

// EntitlementHandler handles HTTP requests for user entitlement operations
type EntitlementHandler struct {
	stores *entitlement.Manager
	logger logger.Interface
}

// NewEntitlementHandler creates a new entitlement handler
func NewEntitlementHandler(stores *entitlement.Manager, logger logger.Interface) *EntitlementHandler {
	return &EntitlementHandler{
		stores: stores,
		logger: logger,
	}
}

func (h *EntitlementHandler) store(c *gin.Context) (*entitlement.Store, bool) {
	userID := c.GetString(constants.ContextKeyUserID)
	if userID == "" {
		h.logger.Warnw("user ID not found in context")
		utils.ErrorResponse(c, http.StatusUnauthorized, "user not authenticated")
		return nil, false
	}

	store := h.stores.Get(c.Request.Context(), userID)
	if store == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "entitlement service is shutting down")
		return nil, false
	}
	return store, true
}

// GetMyEntitlements handles GET /users/me/entitlements
// Returns the full entitlement snapshot for the current user
func (h *EntitlementHandler) GetMyEntitlements(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toSnapshotResponse(store.Snapshot()))
}

// CheckFeature handles GET /users/me/entitlements/features/:key
// Evaluates the feature gate for one feature and explains the decision
func (h *EntitlementHandler) CheckFeature(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "missing feature key")
		return
	}

	store, ok := h.store(c)
	if !ok {
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", toDecisionResponse(store.ExplainFeature(key)))
}

// Refresh handles POST /users/me/entitlements/refresh
// Re-runs both the catalog and entitlement resolution, then returns the
// refreshed snapshot
func (h *EntitlementHandler) Refresh(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	store.Refresh(c.Request.Context())
	utils.SuccessResponse(c, http.StatusOK, "entitlements refreshed", toSnapshotResponse(store.Snapshot()))
}

// RefreshEntitlements handles POST /users/me/entitlements/refresh-entitlements
// Re-runs only the provider entitlement resolution, e.g. after a purchase
// completed on another surface
func (h *EntitlementHandler) RefreshEntitlements(c *gin.Context) {
	store, ok := h.store(c)
	if !ok {
		return
	}

	store.RefreshEntitlements(c.Request.Context())
	utils.SuccessResponse(c, http.StatusOK, "entitlements refreshed", toSnapshotResponse(store.Snapshot()))
}
