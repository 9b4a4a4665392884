package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"qrintake/internal/api/middleware"
	"qrintake/internal/database"
	"qrintake/internal/errcode"
	"qrintake/internal/qrcode"
	"qrintake/internal/tasks"
)

// QRDirectory is the code store used by the handlers.
type QRDirectory interface {
	Create(ctx context.Context, req qrcode.CreateRequest) (*database.QrCode, error)
	FindByCode(ctx context.Context, code string) (*database.QrCode, error)
	FindForOwner(ctx context.Context, id, ownerID uint) (*database.QrCode, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]database.QrCode, error)
	DeleteByOwner(ctx context.Context, id, ownerID uint) (*database.QrCode, error)
}

// TaskEnqueuer is implemented by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QRCodeHandler serves the owner side of the QR code lifecycle plus the
// public lookup.
type QRCodeHandler struct {
	directory     QRDirectory
	tasks         TaskEnqueuer
	storage       ObjectStorage
	publicBaseURL string
}

func NewQRCodeHandler(directory QRDirectory, enqueuer TaskEnqueuer, storage ObjectStorage, publicBaseURL string) *QRCodeHandler {
	return &QRCodeHandler{
		directory:     directory,
		tasks:         enqueuer,
		storage:       storage,
		publicBaseURL: publicBaseURL,
	}
}

type createQRCodeRequest struct {
	Code    string `json:"code"`
	URL     string `json:"url"`
	OwnerID *uint  `json:"ownerId"`
}

// publicQRCode hides owner internals from anonymous callers.
type publicQRCode struct {
	Code      string `json:"code"`
	TargetURL string `json:"targetUrl"`
}

// Create registers the caller's QR code and schedules image rendering.
func (h *QRCodeHandler) Create(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createQRCodeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "invalid request body")
			return
		}
	}

	ownerID := userID
	if req.OwnerID != nil {
		ownerID = *req.OwnerID
	}
	code := req.Code
	if code == "" {
		code = qrcode.NewCode()
	}
	targetURL := req.URL
	if targetURL == "" {
		targetURL = qrcode.FormURL(h.publicBaseURL, code)
	}

	qr, err := h.directory.Create(c.Request.Context(), qrcode.CreateRequest{
		ActorID:   userID,
		OwnerID:   ownerID,
		Code:      code,
		TargetURL: targetURL,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	h.scheduleRender(c, qr)
	c.JSON(http.StatusCreated, qr)
}

func (h *QRCodeHandler) scheduleRender(c *gin.Context, qr *database.QrCode) {
	if h.tasks == nil {
		return
	}
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("qr_code_id", uint64(qr.ID)))
	task, err := tasks.NewQRRenderTask(qr.ID, middleware.GetCorrelationID(c))
	if err != nil {
		logger.Error("build render task failed", slog.Any("error", err))
		return
	}
	if _, err := h.tasks.EnqueueContext(c.Request.Context(), task); err != nil {
		// The code is usable without its image; rendering can be retried by recreating it.
		logger.Error("enqueue render task failed", slog.Any("error", err))
	}
}

// List returns the caller's codes.
func (h *QRCodeHandler) List(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	codes, err := h.directory.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, codes)
}

// GetByCode is the public lookup used by the form page.
func (h *QRCodeHandler) GetByCode(c *gin.Context) {
	qr, err := h.directory.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicQRCode{Code: qr.Code, TargetURL: qr.URL})
}

// ImageURL returns a short lived link to the rendered PNG.
func (h *QRCodeHandler) ImageURL(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		BadRequest(c, "invalid qr code id")
		return
	}

	qr, err := h.directory.FindForOwner(c.Request.Context(), id, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	if qr.Image == "" {
		NotFound(c, "qr image not rendered yet")
		return
	}

	url, err := h.storage.GeneratePresignedURL(c.Request.Context(), qr.Image, 15*time.Minute)
	if err != nil {
		RespondError(c, errcode.Infra("presign qr image", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Delete removes the caller's code. Other owners' ids answer 404.
func (h *QRCodeHandler) Delete(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		NotFound(c, "qr code not found")
		return
	}

	deleted, err := h.directory.DeleteByOwner(c.Request.Context(), id, userID)
	if err != nil {
		if errors.Is(err, errcode.ErrNotFound) {
			NotFound(c, "qr code not found")
			return
		}
		RespondError(c, err)
		return
	}

	if deleted.Image != "" && h.storage != nil {
		if err := h.storage.DeleteObject(c.Request.Context(), deleted.Image); err != nil {
			middleware.LoggerFromContext(c).Warn("delete qr image failed",
				slog.String("object_key", deleted.Image),
				slog.Any("error", err),
			)
		}
	}
	c.Status(http.StatusNoContent)
}
