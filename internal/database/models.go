package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Submission review states.
const (
	StatusPending     = "pending"
	StatusShortlisted = "shortlisted"
	StatusAccepted    = "accepted"
	StatusRejected    = "rejected"
)

// Notification types and states.
const (
	NotificationFormSubmission = "FormSubmission"
	NotificationUnread         = "unread"
	NotificationRead           = "read"
)

// User is an owner account of the dashboard.
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:64"`
	PasswordHash string `gorm:"size:255"`
}

// QrCode is the public entry point to an owner's submission form.
// Both unique indexes are the authority for the one-code-per-owner and
// global code uniqueness rules; they hold under concurrent creates.
type QrCode struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:128;not null" json:"code"`
	OwnerID   uint      `gorm:"uniqueIndex;not null" json:"ownerId"`
	URL       string    `gorm:"size:512;not null" json:"targetUrl"`
	Image     string    `gorm:"size:512" json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// GeofenceLocation is the circular area an owner's QR code may be used from.
type GeofenceLocation struct {
	OwnerID      uint      `gorm:"primaryKey;autoIncrement:false" json:"ownerId"`
	Latitude     float64   `gorm:"type:double precision;not null" json:"latitude"`
	Longitude    float64   `gorm:"type:double precision;not null" json:"longitude"`
	RadiusMeters float64   `gorm:"type:double precision;not null" json:"radiusMeters"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Submission is an application received through a QR code form.
// QrCodeID is not a foreign key: rows outlive the code they came from.
type Submission struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	QrCodeID        uint      `gorm:"index" json:"qrCodeId"`
	OwnerID         uint      `gorm:"index;not null" json:"ownerId"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	Email           string    `gorm:"size:254;not null" json:"email"`
	Reason          string    `gorm:"type:text" json:"reason,omitempty"`
	ApplicationType string    `gorm:"size:32;not null" json:"applicationType"`
	ResumePath      string    `gorm:"size:512" json:"resumePath,omitempty"`
	Status          string    `gorm:"size:32;not null;default:pending" json:"status"`
	Reviewed        bool      `gorm:"not null;default:false" json:"reviewed"`
	Designation     string    `gorm:"size:128" json:"designation,omitempty"`
	Department      string    `gorm:"size:128" json:"department,omitempty"`
	CreatedAt       time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Notification is an append-only message addressed to an owner.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	OwnerID   uint           `gorm:"index;not null" json:"ownerId"`
	Type      string         `gorm:"size:64;not null" json:"type"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Status    string         `gorm:"size:16;not null;default:unread" json:"status"`
	Payload   datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

// AllModels lists every table migrated by the api and admin binaries.
func AllModels() []any {
	return []any{&User{}, &QrCode{}, &GeofenceLocation{}, &Submission{}, &Notification{}}
}
