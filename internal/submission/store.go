// Package submission persists applications and drives the review workflow.
package submission

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"qrintake/internal/database"
	"qrintake/internal/errcode"
)

var reviewStatuses = map[string]struct{}{
	database.StatusPending:     {},
	database.StatusShortlisted: {},
	database.StatusAccepted:    {},
	database.StatusRejected:    {},
}

// Review is a partial update applied by the owner. Nil fields are left alone.
type Review struct {
	Status      *string
	Designation *string
	Department  *string
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create appends a submission row.
func (s *Store) Create(ctx context.Context, sub *database.Submission) error {
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return errcode.Infra("insert submission", err)
	}
	return nil
}

// ListByOwner returns the owner's submissions, newest first. An empty status
// means every status.
func (s *Store) ListByOwner(ctx context.Context, ownerID uint, status string) ([]database.Submission, error) {
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status = strings.TrimSpace(status); status != "" {
		if _, ok := reviewStatuses[status]; !ok {
			return nil, errcode.Validation("unknown status %q", status)
		}
		query = query.Where("status = ?", status)
	}

	subs := make([]database.Submission, 0)
	if err := query.Order("created_at DESC").Order("id DESC").Find(&subs).Error; err != nil {
		return nil, errcode.Infra("list submissions", err)
	}
	return subs, nil
}

// Get returns a submission owned by ownerID.
func (s *Store) Get(ctx context.Context, id, ownerID uint) (*database.Submission, error) {
	var sub database.Submission
	if err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.NotFound("submission not found")
		}
		return nil, errcode.Infra("query submission", err)
	}
	return &sub, nil
}

// ApplyReview updates the workflow fields and marks the row reviewed.
func (s *Store) ApplyReview(ctx context.Context, id, ownerID uint, r Review) (*database.Submission, error) {
	updates := map[string]any{"reviewed": true}
	if r.Status != nil {
		status := strings.TrimSpace(*r.Status)
		if _, ok := reviewStatuses[status]; !ok {
			return nil, errcode.Validation("unknown status %q", status)
		}
		updates["status"] = status
	}
	if r.Designation != nil {
		updates["designation"] = strings.TrimSpace(*r.Designation)
	}
	if r.Department != nil {
		updates["department"] = strings.TrimSpace(*r.Department)
	}

	res := s.db.WithContext(ctx).
		Model(&database.Submission{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(updates)
	if res.Error != nil {
		return nil, errcode.Infra("update submission", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errcode.NotFound("submission not found")
	}
	return s.Get(ctx, id, ownerID)
}
