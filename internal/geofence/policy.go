// Package geofence reads and maintains an owner's allowed area.
package geofence

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"qrintake/internal/database"
	"qrintake/internal/errcode"
	"qrintake/internal/geo"
)

// Location is the center and radius an owner admits submissions from.
type Location struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radiusMeters"`
}

// Validate enforces coordinate bounds and a non-negative radius.
func (l Location) Validate() error {
	if !geo.ValidCoordinates(l.Latitude, l.Longitude) {
		return errcode.Validation("latitude must be within [-90,90] and longitude within [-180,180]")
	}
	if math.IsNaN(l.RadiusMeters) || math.IsInf(l.RadiusMeters, 0) || l.RadiusMeters < 0 {
		return errcode.Validation("radius must be a non-negative number of meters")
	}
	return nil
}

// Policy stores locations in geofence_locations, one row per owner.
type Policy struct {
	db *gorm.DB
}

func NewPolicy(db *gorm.DB) *Policy {
	return &Policy{db: db}
}

// LocationForOwner returns the owner's location. ok is false when none is
// configured, which means submissions are unrestricted.
func (p *Policy) LocationForOwner(ctx context.Context, ownerID uint) (loc Location, ok bool, err error) {
	var row database.GeofenceLocation
	if err := p.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Location{}, false, nil
		}
		return Location{}, false, errcode.Infra("query geofence location", err)
	}
	return Location{
		Latitude:     row.Latitude,
		Longitude:    row.Longitude,
		RadiusMeters: row.RadiusMeters,
	}, true, nil
}

// Upsert validates loc and replaces the owner's location.
func (p *Policy) Upsert(ctx context.Context, ownerID uint, loc Location) (*database.GeofenceLocation, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	row := database.GeofenceLocation{
		OwnerID:      ownerID,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		RadiusMeters: loc.RadiusMeters,
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "radius_meters", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, errcode.Infra("upsert geofence location", err)
	}
	return &row, nil
}

// Delete removes the owner's location, lifting the restriction.
func (p *Policy) Delete(ctx context.Context, ownerID uint) error {
	res := p.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&database.GeofenceLocation{})
	if res.Error != nil {
		return errcode.Infra("delete geofence location", res.Error)
	}
	if res.RowsAffected == 0 {
		return errcode.NotFound("no location configured")
	}
	return nil
}
