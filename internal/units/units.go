// Package units provides shared constants and conversions for distance units.
package units

// Unit constants
const (
	Meters     = "m"
	Kilometers = "km"
)

// MetersPerKilometer is the conversion factor between the two distance units.
const MetersPerKilometer = 1000.0

// MetersToKilometers converts a distance from meters to kilometers.
// Distance rasters are computed in meters; classification thresholds
// are expressed in kilometers.
func MetersToKilometers(d float64) float64 {
	return d / MetersPerKilometer
}

// KilometersToMeters converts a distance from kilometers to meters.
func KilometersToMeters(d float64) float64 {
	return d * MetersPerKilometer
}

// Label returns an axis/legend label for the given unit.
func Label(unit string) string {
	switch unit {
	case Kilometers:
		return "Distance (km)"
	case Meters:
		return "Distance (m)"
	default:
		return "Distance"
	}
}
