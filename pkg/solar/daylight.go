// Package solar provides the solar geometry and clear-sky irradiance
// calculations used for performance-ratio and theoretical-yield estimates.
package solar

import (
	"math"
	"time"
)

// declination returns the solar declination in radians for a day of year,
// the angle between the Sun and the celestial equator.
func declination(dayOfYear int) float64 {
	doy := float64(dayOfYear)
	innerAngle := (356.6 + 0.9856*doy) * (math.Pi / 180.0)
	outerAngle := (278.97 + 0.9856*doy + 1.9165*math.Sin(innerAngle)) * (math.Pi / 180.0)
	return math.Asin(0.39785 * math.Sin(outerAngle))
}

// DaylightHours returns the astronomical day length in hours for the given
// date and latitude. Polar day yields 24, polar night 0.
func DaylightHours(date time.Time, latitude float64) float64 {
	declinationRad := declination(date.YearDay())
	latRad := latitude * (math.Pi / 180.0)

	// At sunrise/sunset the sun sits on the horizon: cos(H) = -tan(lat)*tan(decl)
	cosH := -math.Tan(latRad) * math.Tan(declinationRad)

	if cosH < -1.0 {
		return 24.0 // sun never sets
	}
	if cosH > 1.0 {
		return 0.0 // sun never rises
	}

	hourAngleDeg := radToDeg(math.Acos(cosH))
	return 2.0 * hourAngleDeg / 15.0 // 15 degrees of hour angle per hour
}
