package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrintake/internal/admission"
	"qrintake/internal/api/middleware"
	"qrintake/internal/metrics"
)

// AdmissionEvaluator decides whether a location may use a code.
type AdmissionEvaluator interface {
	Evaluate(ctx context.Context, code string, lat, lon float64) (admission.Result, error)
}

type AdmissionHandler struct {
	evaluator AdmissionEvaluator
}

func NewAdmissionHandler(evaluator AdmissionEvaluator) *AdmissionHandler {
	return &AdmissionHandler{evaluator: evaluator}
}

type validateRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type validateResponse struct {
	Message        string   `json:"message"`
	WithinRange    bool     `json:"withinRange"`
	Reason         string   `json:"reason"`
	DistanceMeters *float64 `json:"distanceMeters,omitempty"`
	RadiusMeters   *float64 `json:"radiusMeters,omitempty"`
}

var admissionStatus = map[admission.Reason]int{
	admission.ReasonWithinRange:        http.StatusOK,
	admission.ReasonUnrestricted:       http.StatusOK,
	admission.ReasonInvalidCoordinates: http.StatusBadRequest,
	admission.ReasonCodeNotFound:       http.StatusNotFound,
	admission.ReasonOutOfRange:         http.StatusForbidden,
}

// Validate answers whether the posted device location is inside the owner's
// geofence. Every response body carries withinRange.
func (h *AdmissionHandler) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Latitude == nil || req.Longitude == nil {
		h.reply(c, admission.Result{Reason: admission.ReasonInvalidCoordinates})
		return
	}

	res, err := h.evaluator.Evaluate(c.Request.Context(), c.Param("code"), *req.Latitude, *req.Longitude)
	if err != nil {
		metrics.ObserveAdmission("error")
		middleware.LoggerFromContext(c).Error("evaluate admission failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"message":     "internal error",
			"withinRange": false,
		})
		return
	}
	h.reply(c, res)
}

func (h *AdmissionHandler) reply(c *gin.Context, res admission.Result) {
	metrics.ObserveAdmission(string(res.Reason))
	c.JSON(admissionStatus[res.Reason], validateResponse{
		Message:        res.Message(),
		WithinRange:    res.WithinRange,
		Reason:         string(res.Reason),
		DistanceMeters: res.DistanceMeters,
		RadiusMeters:   res.RadiusMeters,
	})
}
