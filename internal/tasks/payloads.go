package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task types shared by producers and consumers.
const (
	TypeQRRender = "qrcode:render"
)

// QRRenderPayload identifies the code whose PNG should be rendered.
type QRRenderPayload struct {
	QrCodeID      uint   `json:"qr_code_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewQRRenderTask builds a render task for a freshly created code.
func NewQRRenderTask(id uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(QRRenderPayload{
		QrCodeID:      id,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeQRRender, payload, asynq.MaxRetry(5)), nil
}
