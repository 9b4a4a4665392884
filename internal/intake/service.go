// Package intake validates and records applications sent through a QR code form.
package intake

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"qrintake/internal/admission"
	"qrintake/internal/database"
	"qrintake/internal/errcode"
)

// Fields are the submitted form values. Latitude/Longitude are optional and
// only consulted when a geofence gate is configured.
type Fields struct {
	Name            string
	Email           string
	Reason          string
	ApplicationType string
	Latitude        *float64
	Longitude       *float64
}

// Upload is a resume that already passed type, size and malware filtering.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

type CodeResolver interface {
	FindByCode(ctx context.Context, code string) (*database.QrCode, error)
}

// Gate re-runs the admission check for a resolved code.
type Gate interface {
	Check(ctx context.Context, qr *database.QrCode, lat, lon *float64) (admission.Result, error)
}

type SubmissionStore interface {
	Create(ctx context.Context, s *database.Submission) error
}

// FileStore persists a resume and returns its reference.
type FileStore interface {
	StoreResume(ctx context.Context, ownerID uint, file Upload) (string, error)
	DeleteResume(ctx context.Context, path string) error
}

// Notifier delivers a message to an owner. Failures never undo a submission.
type Notifier interface {
	Enqueue(ctx context.Context, ownerID uint, notificationType, message string) error
}

// Deps are the collaborators of Service. Gate and Files may be nil.
type Deps struct {
	Codes       CodeResolver
	Submissions SubmissionStore
	Notifier    Notifier
	Files       FileStore
	Gate        Gate
	Logger      *slog.Logger
}

type Service struct {
	codes        CodeResolver
	submissions  SubmissionStore
	notifier     Notifier
	files        FileStore
	gate         Gate
	logger       *slog.Logger
	allowedTypes map[string]struct{}
}

// NewService builds the intake service; applicationTypes is the accepted set.
func NewService(deps Deps, applicationTypes []string) *Service {
	allowed := make(map[string]struct{}, len(applicationTypes))
	for _, t := range applicationTypes {
		allowed[t] = struct{}{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		codes:        deps.Codes,
		submissions:  deps.Submissions,
		notifier:     deps.Notifier,
		files:        deps.Files,
		gate:         deps.Gate,
		logger:       logger,
		allowedTypes: allowed,
	}
}

// Submit validates fields, resolves code and records a pending submission.
// Nothing is written when validation, resolution or the gate fails.
func (s *Service) Submit(ctx context.Context, code string, fields Fields, resume *Upload) (*database.Submission, error) {
	if err := validateFields(&fields, s.allowedTypes); err != nil {
		return nil, err
	}

	qr, err := s.codes.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.gate != nil {
		res, err := s.gate.Check(ctx, qr, fields.Latitude, fields.Longitude)
		if err != nil {
			return nil, err
		}
		if !res.WithinRange {
			return nil, errcode.Forbidden(res.Message())
		}
	}

	var resumePath string
	if resume != nil {
		if s.files == nil {
			return nil, errcode.Validation("resume uploads are not accepted")
		}
		resumePath, err = s.files.StoreResume(ctx, qr.OwnerID, *resume)
		if err != nil {
			return nil, errcode.Infra("store resume", err)
		}
	}

	sub := &database.Submission{
		QrCodeID:        qr.ID,
		OwnerID:         qr.OwnerID,
		Name:            fields.Name,
		Email:           fields.Email,
		Reason:          fields.Reason,
		ApplicationType: fields.ApplicationType,
		ResumePath:      resumePath,
		Status:          database.StatusPending,
		Reviewed:        false,
	}
	if err := s.submissions.Create(ctx, sub); err != nil {
		if resumePath != "" {
			s.discardResume(ctx, resumePath)
		}
		return nil, err
	}

	// Best effort: the submission stands even if the owner is not told.
	message := fmt.Sprintf("New %s application from %s", sub.ApplicationType, sub.Name)
	if err := s.notifier.Enqueue(ctx, qr.OwnerID, database.NotificationFormSubmission, message); err != nil {
		s.logger.Warn("enqueue submission notification failed",
			slog.Uint64("owner_id", uint64(qr.OwnerID)),
			slog.Uint64("submission_id", uint64(sub.ID)),
			slog.Any("error", err),
		)
	}

	return sub, nil
}

// discardResume removes a resume whose submission row was never written.
func (s *Service) discardResume(ctx context.Context, path string) {
	if err := s.files.DeleteResume(context.WithoutCancel(ctx), path); err != nil {
		s.logger.Warn("delete orphaned resume failed",
			slog.String("resume_path", path),
			slog.Any("error", err),
		)
	}
}
