package verify

import (
	"math"
	"time"

	"mission_rewards/internal/apperr"
	"mission_rewards/internal/model"
	"mission_rewards/pkg/geo"
	"mission_rewards/pkg/logger"

	"go.uber.org/zap"
)

type GpsConfig struct {
	MaxAccuracyMeters   float64       `mapstructure:"maxAccuracyMeters"`
	FreshnessWindow     time.Duration `mapstructure:"freshnessWindow"`
	RadiusMeters        float64       `mapstructure:"radiusMeters"`
	ClockSkew           time.Duration `mapstructure:"clockSkew"`
	RejectMockLocations bool          `mapstructure:"rejectMockLocations"`
}

func DefaultGpsConfig() GpsConfig {
	return GpsConfig{
		MaxAccuracyMeters:   80,
		FreshnessWindow:     2 * time.Minute,
		RadiusMeters:        100,
		ClockSkew:           30 * time.Second,
		RejectMockLocations: true,
	}
}

type GpsVerifier struct {
	cfg GpsConfig
}

func NewGpsVerifier(cfg GpsConfig) *GpsVerifier {
	return &GpsVerifier{cfg: cfg}
}

// Verify checks a location fix against the target place. On success it returns the
// measured distance in meters.
func (v *GpsVerifier) Verify(target *model.Place, fix model.LocationFix, now time.Time) (float64, error) {
	submitted := geo.Point{Lat: fix.Latitude, Lng: fix.Longitude}
	if !submitted.Valid() {
		return 0, apperr.ErrValidation.WithMessage("latitude or longitude out of range")
	}
	if math.IsNaN(fix.Accuracy) || fix.Accuracy <= 0 {
		return 0, apperr.ErrValidation.WithMessage("accuracy must be a positive number of meters")
	}
	if fix.CapturedAt.IsZero() {
		return 0, apperr.ErrValidation.WithMessage("timestamp is required")
	}

	if fix.IsMock {
		if v.cfg.RejectMockLocations {
			return 0, apperr.ErrMockLocation
		}
		logger.Logger().Warn("accepting location from mock provider",
			zap.String("provider", fix.Provider))
	}

	if fix.Accuracy > v.cfg.MaxAccuracyMeters {
		return 0, apperr.ErrAccuracyTooLow
	}

	age := now.Sub(fix.CapturedAt)
	if age > v.cfg.FreshnessWindow || -age > v.cfg.ClockSkew {
		return 0, apperr.ErrStaleLocation
	}

	distance := geo.DistanceMeters(submitted, geo.Point{Lat: target.Latitude, Lng: target.Longitude})
	if distance > v.cfg.RadiusMeters {
		return distance, apperr.ErrTooFar
	}

	return distance, nil
}
