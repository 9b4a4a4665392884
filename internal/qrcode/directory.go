// Package qrcode resolves public codes to their owners and manages the
// one-code-per-owner lifecycle.
package qrcode

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"qrintake/internal/database"
	"qrintake/internal/errcode"
)

var (
	errCodeTaken  = errcode.Conflict("qr code already exists")
	errOwnerTaken = errcode.Conflict("owner already has a qr code")
	errNotFound   = errcode.NotFound("qr code not found")
)

// CreateRequest describes a new code. ActorID is the authenticated caller.
type CreateRequest struct {
	ActorID   uint
	OwnerID   uint
	Code      string
	TargetURL string
	Image     string
}

// Directory stores QR codes in the qr_codes table.
type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

// Create inserts a new code. The pre-checks give precise conflict messages;
// the unique indexes decide when two creates race.
func (d *Directory) Create(ctx context.Context, req CreateRequest) (*database.QrCode, error) {
	code := strings.TrimSpace(req.Code)
	targetURL := strings.TrimSpace(req.TargetURL)
	switch {
	case code == "":
		return nil, errcode.Validation("code is required")
	case targetURL == "":
		return nil, errcode.Validation("url is required")
	case req.OwnerID == 0:
		return nil, errcode.Validation("owner is required")
	case req.ActorID != req.OwnerID:
		return nil, errcode.Validation("owner does not match the authenticated user")
	}

	db := d.db.WithContext(ctx)

	var count int64
	if err := db.Model(&database.QrCode{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return nil, errcode.Infra("check qr code uniqueness", err)
	}
	if count > 0 {
		return nil, errCodeTaken
	}
	if err := db.Model(&database.QrCode{}).Where("owner_id = ?", req.OwnerID).Count(&count).Error; err != nil {
		return nil, errcode.Infra("check owner qr code", err)
	}
	if count > 0 {
		return nil, errOwnerTaken
	}

	qr := database.QrCode{
		Code:    code,
		OwnerID: req.OwnerID,
		URL:     targetURL,
		Image:   req.Image,
	}
	if err := db.Create(&qr).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errcode.Conflict("qr code or owner already registered")
		}
		return nil, errcode.Infra("insert qr code", err)
	}
	return &qr, nil
}

// FindByCode is the public lookup; the code itself is the capability.
func (d *Directory) FindByCode(ctx context.Context, code string) (*database.QrCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errNotFound
	}
	var qr database.QrCode
	if err := d.db.WithContext(ctx).Where("code = ?", code).First(&qr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound
		}
		return nil, errcode.Infra("query qr code", err)
	}
	return &qr, nil
}

// FindForOwner returns the code with id when ownerID owns it.
func (d *Directory) FindForOwner(ctx context.Context, id, ownerID uint) (*database.QrCode, error) {
	var qr database.QrCode
	err := d.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&qr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound
		}
		return nil, errcode.Infra("query qr code", err)
	}
	return &qr, nil
}

// ListByOwner returns the owner's codes, at most one under current rules.
func (d *Directory) ListByOwner(ctx context.Context, ownerID uint) ([]database.QrCode, error) {
	codes := make([]database.QrCode, 0, 1)
	if err := d.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&codes).Error; err != nil {
		return nil, errcode.Infra("list qr codes", err)
	}
	return codes, nil
}

// DeleteByOwner removes the code only when ownerID owns it. Someone else's
// code is reported as not found. The deleted row is returned so callers can
// clean up the rendered image.
func (d *Directory) DeleteByOwner(ctx context.Context, id, ownerID uint) (*database.QrCode, error) {
	var deleted *database.QrCode
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var qr database.QrCode
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&qr).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&database.QrCode{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		deleted = &qr
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errNotFound
		}
		return nil, errcode.Infra("delete qr code", err)
	}
	return deleted, nil
}

// SetImage records the object key of the rendered PNG.
func (d *Directory) SetImage(ctx context.Context, id uint, objectKey string) error {
	res := d.db.WithContext(ctx).Model(&database.QrCode{}).Where("id = ?", id).Update("image", objectKey)
	if res.Error != nil {
		return errcode.Infra("update qr code image", res.Error)
	}
	if res.RowsAffected == 0 {
		return errNotFound
	}
	return nil
}
