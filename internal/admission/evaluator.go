// Package admission decides whether a device location may use a QR code.
package admission

import (
	"context"
	"errors"

	"qrintake/internal/database"
	"qrintake/internal/errcode"
	"qrintake/internal/geo"
	"qrintake/internal/geofence"
)

// Reason explains an admission outcome.
type Reason string

const (
	ReasonWithinRange        Reason = "within_range"
	ReasonUnrestricted       Reason = "unrestricted"
	ReasonInvalidCoordinates Reason = "invalid_coordinates"
	ReasonCodeNotFound       Reason = "code_not_found"
	ReasonOutOfRange         Reason = "out_of_range"
)

var messages = map[Reason]string{
	ReasonWithinRange:        "You are within the allowed range",
	ReasonUnrestricted:       "No location restriction configured",
	ReasonInvalidCoordinates: "Invalid coordinates",
	ReasonCodeNotFound:       "QR code not found",
	ReasonOutOfRange:         "You are outside the allowed range",
}

// Result is the computed decision. Logical failures are results, not errors.
type Result struct {
	WithinRange    bool
	Reason         Reason
	DistanceMeters *float64
	RadiusMeters   *float64
	// QrCode is set once the code has been resolved.
	QrCode *database.QrCode
}

// Message is the human readable explanation of Reason.
func (r Result) Message() string {
	return messages[r.Reason]
}

// CodeResolver looks up a public code.
type CodeResolver interface {
	FindByCode(ctx context.Context, code string) (*database.QrCode, error)
}

// LocationResolver returns an owner's geofence; ok=false means unrestricted.
type LocationResolver interface {
	LocationForOwner(ctx context.Context, ownerID uint) (loc geofence.Location, ok bool, err error)
}

// Evaluator combines code resolution, the owner's geofence and the
// Haversine distance. It holds no mutable state.
type Evaluator struct {
	codes     CodeResolver
	locations LocationResolver
}

func NewEvaluator(codes CodeResolver, locations LocationResolver) *Evaluator {
	return &Evaluator{codes: codes, locations: locations}
}

// Evaluate checks whether (lat, lon) may use code. Invalid coordinates are
// rejected before any lookup. The returned error is only set for storage faults.
func (e *Evaluator) Evaluate(ctx context.Context, code string, lat, lon float64) (Result, error) {
	if !geo.ValidCoordinates(lat, lon) {
		return Result{Reason: ReasonInvalidCoordinates}, nil
	}

	qr, err := e.codes.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, errcode.ErrNotFound) {
			return Result{Reason: ReasonCodeNotFound}, nil
		}
		return Result{}, err
	}

	return e.Check(ctx, qr, &lat, &lon)
}

// Check evaluates an already resolved code. Coordinates may be absent; that
// only matters when the owner has a location configured.
func (e *Evaluator) Check(ctx context.Context, qr *database.QrCode, lat, lon *float64) (Result, error) {
	loc, ok, err := e.locations.LocationForOwner(ctx, qr.OwnerID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{WithinRange: true, Reason: ReasonUnrestricted, QrCode: qr}, nil
	}
	if lat == nil || lon == nil || !geo.ValidCoordinates(*lat, *lon) {
		return Result{Reason: ReasonInvalidCoordinates, QrCode: qr}, nil
	}

	distance := geo.DistanceMeters(*lat, *lon, loc.Latitude, loc.Longitude)
	radius := loc.RadiusMeters
	res := Result{
		DistanceMeters: &distance,
		RadiusMeters:   &radius,
		QrCode:         qr,
	}
	if distance <= radius {
		res.WithinRange = true
		res.Reason = ReasonWithinRange
	} else {
		res.Reason = ReasonOutOfRange
	}
	return res, nil
}
