package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"qrintake/internal/api/middleware"
	"qrintake/internal/database"
	"qrintake/internal/errcode"
	"qrintake/internal/intake"
	"qrintake/internal/metrics"
)

// Submitter records a public form submission.
type Submitter interface {
	Submit(ctx context.Context, code string, fields intake.Fields, resume *intake.Upload) (*database.Submission, error)
}

type FormHandler struct {
	intake Submitter
	filter *resumeFilter
}

func NewFormHandler(submitter Submitter, filter *resumeFilter) *FormHandler {
	return &FormHandler{intake: submitter, filter: filter}
}

type submissionResponse struct {
	ID              uint      `json:"id"`
	QrCodeID        uint      `json:"qrCodeId"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Reason          string    `json:"reason,omitempty"`
	ApplicationType string    `json:"applicationType"`
	Status          string    `json:"status"`
	Reviewed        bool      `json:"reviewed"`
	ResumeUploaded  bool      `json:"resumeUploaded"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Submit accepts the multipart application form for :code.
func (h *FormHandler) Submit(c *gin.Context) {
	fields, err := formFields(c)
	if err != nil {
		metrics.ObserveSubmission("invalid")
		RespondError(c, err)
		return
	}

	upload, closer, err := h.resume(c)
	if err != nil {
		metrics.ObserveSubmission("invalid")
		RespondError(c, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	sub, err := h.intake.Submit(c.Request.Context(), c.Param("code"), fields, upload)
	if err != nil {
		metrics.ObserveSubmission(submissionOutcome(err))
		RespondError(c, err)
		return
	}

	metrics.ObserveSubmission("accepted")
	middleware.LoggerFromContext(c).Info("submission received",
		slog.Uint64("submission_id", uint64(sub.ID)),
		slog.Uint64("owner_id", uint64(sub.OwnerID)),
	)
	c.JSON(http.StatusCreated, submissionResponse{
		ID:              sub.ID,
		QrCodeID:        sub.QrCodeID,
		Name:            sub.Name,
		Email:           sub.Email,
		Reason:          sub.Reason,
		ApplicationType: sub.ApplicationType,
		Status:          sub.Status,
		Reviewed:        sub.Reviewed,
		ResumeUploaded:  sub.ResumePath != "",
		CreatedAt:       sub.CreatedAt,
	})
}

func (h *FormHandler) resume(c *gin.Context) (*intake.Upload, io.Closer, error) {
	header, err := c.FormFile("resume")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, nil
		}
		return nil, nil, errcode.Validation("invalid multipart form")
	}
	return h.filter.Accept(header)
}

func formFields(c *gin.Context) (intake.Fields, error) {
	fields := intake.Fields{
		Name:            c.PostForm("name"),
		Email:           c.PostForm("email"),
		Reason:          c.PostForm("reason"),
		ApplicationType: c.PostForm("applicationType"),
	}
	if fields.ApplicationType == "" {
		fields.ApplicationType = c.PostForm("application_type")
	}

	var err error
	if fields.Latitude, err = optionalFloat(c.PostForm("latitude")); err != nil {
		return intake.Fields{}, errcode.Validation("latitude must be a number")
	}
	if fields.Longitude, err = optionalFloat(c.PostForm("longitude")); err != nil {
		return intake.Fields{}, errcode.Validation("longitude must be a number")
	}
	return fields, nil
}

func optionalFloat(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func submissionOutcome(err error) string {
	switch {
	case errors.Is(err, errcode.ErrValidation):
		return "invalid"
	case errors.Is(err, errcode.ErrNotFound):
		return "not_found"
	case errors.Is(err, errcode.ErrForbidden):
		return "out_of_range"
	default:
		return "error"
	}
}
