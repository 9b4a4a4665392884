package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrintake/internal/database"
	"qrintake/internal/geofence"
)

// LocationPolicy manages an owner's geofence.
type LocationPolicy interface {
	LocationForOwner(ctx context.Context, ownerID uint) (geofence.Location, bool, error)
	Upsert(ctx context.Context, ownerID uint, loc geofence.Location) (*database.GeofenceLocation, error)
	Delete(ctx context.Context, ownerID uint) error
}

type LocationHandler struct {
	policy LocationPolicy
}

func NewLocationHandler(policy LocationPolicy) *LocationHandler {
	return &LocationHandler{policy: policy}
}

type locationRequest struct {
	Latitude     *float64 `json:"latitude" binding:"required"`
	Longitude    *float64 `json:"longitude" binding:"required"`
	RadiusMeters *float64 `json:"radiusMeters" binding:"required"`
}

type locationResponse struct {
	Configured bool `json:"configured"`
	*geofence.Location
}

// Get returns the caller's location; configured=false means unrestricted.
func (h *LocationHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	loc, found, err := h.policy.LocationForOwner(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, locationResponse{Configured: false})
		return
	}
	c.JSON(http.StatusOK, locationResponse{Configured: true, Location: &loc})
}

// Put creates or replaces the caller's location.
func (h *LocationHandler) Put(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "latitude, longitude and radiusMeters are required numbers")
		return
	}

	loc := geofence.Location{
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		RadiusMeters: *req.RadiusMeters,
	}
	if _, err := h.policy.Upsert(c.Request.Context(), userID, loc); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, locationResponse{Configured: true, Location: &loc})
}

// Delete lifts the caller's restriction.
func (h *LocationHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	if err := h.policy.Delete(c.Request.Context(), userID); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
