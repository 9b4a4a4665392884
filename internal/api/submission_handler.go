package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"qrintake/internal/database"
	"qrintake/internal/errcode"
	"qrintake/internal/submission"
)

// SubmissionReviewer is the owner side of the submission workflow.
type SubmissionReviewer interface {
	ListByOwner(ctx context.Context, ownerID uint, status string) ([]database.Submission, error)
	Get(ctx context.Context, id, ownerID uint) (*database.Submission, error)
	ApplyReview(ctx context.Context, id, ownerID uint, r submission.Review) (*database.Submission, error)
}

type SubmissionHandler struct {
	submissions SubmissionReviewer
	storage     ObjectStorage
}

func NewSubmissionHandler(submissions SubmissionReviewer, storage ObjectStorage) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, storage: storage}
}

type reviewRequest struct {
	Status      *string `json:"status"`
	Designation *string `json:"designation"`
	Department  *string `json:"department"`
}

func (h *SubmissionHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	subs, err := h.submissions.ListByOwner(c.Request.Context(), userID, c.Query("status"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *SubmissionHandler) Get(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		BadRequest(c, "invalid submission id")
		return
	}

	sub, err := h.submissions.Get(c.Request.Context(), id, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Review updates status, designation and department, and marks the row reviewed.
func (h *SubmissionHandler) Review(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		BadRequest(c, "invalid submission id")
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body")
		return
	}

	sub, err := h.submissions.ApplyReview(c.Request.Context(), id, userID, submission.Review{
		Status:      req.Status,
		Designation: req.Designation,
		Department:  req.Department,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// ResumeURL returns a short lived download link for the applicant's resume.
func (h *SubmissionHandler) ResumeURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		BadRequest(c, "invalid submission id")
		return
	}

	sub, err := h.submissions.Get(c.Request.Context(), id, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	if sub.ResumePath == "" {
		NotFound(c, "no resume attached")
		return
	}

	url, err := h.storage.GeneratePresignedURL(c.Request.Context(), sub.ResumePath, 10*time.Minute)
	if err != nil {
		RespondError(c, errcode.Infra("presign resume", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
