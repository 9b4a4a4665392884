package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"qrintake/internal/database"
	"qrintake/internal/tasks"
)

const qrImageSize = 512

// ObjectUploader is the storage capability the renderer needs.
type ObjectUploader interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
}

// QRRenderHandler renders the PNG for a QR code and records its object key.
type QRRenderHandler struct {
	db      *gorm.DB
	storage ObjectUploader
	logger  *slog.Logger
}

func NewQRRenderHandler(db *gorm.DB, storage ObjectUploader, logger *slog.Logger) *QRRenderHandler {
	return &QRRenderHandler{db: db, storage: storage, logger: logger}
}

// ObjectKey is where the rendered image for a code lives.
func ObjectKey(qr database.QrCode) string {
	return fmt.Sprintf("qrcodes/%d/%s.png", qr.OwnerID, qr.Code)
}

// ProcessTask implements asynq.Handler.
func (h *QRRenderHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	log := h.logger

	var payload tasks.QRRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("qr_code_id", uint64(payload.QrCodeID)),
	)

	var qr database.QrCode
	if err := h.db.WithContext(ctx).First(&qr, payload.QrCodeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("qr code deleted before rendering, skipping task")
			return nil
		}
		log.Error("query qr code failed", slog.Any("error", err))
		return err
	}

	png, err := qrcode.Encode(qr.URL, qrcode.Medium, qrImageSize)
	if err != nil {
		log.Error("encode qr png failed", slog.Any("error", err))
		return fmt.Errorf("encode qr png: %v: %w", err, asynq.SkipRetry)
	}

	objectKey := ObjectKey(qr)
	if _, err := h.storage.UploadFile(ctx, objectKey, bytes.NewReader(png), int64(len(png)), "image/png"); err != nil {
		log.Error("upload qr png failed", slog.Any("error", err))
		return err
	}

	res := h.db.WithContext(ctx).Model(&database.QrCode{}).Where("id = ?", qr.ID).Update("image", objectKey)
	if res.Error != nil {
		log.Error("update qr image failed", slog.Any("error", res.Error))
		return res.Error
	}

	log.Info("qr image rendered", slog.String("object_key", objectKey))
	return nil
}
