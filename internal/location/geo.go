package location

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371

// Distance expresses one great-circle distance in the units the UI layers
// want without repeated conversions at call sites.
type Distance struct {
	Kilometers float64
	Miles      float64
	Meters     float64
}

// Haversine computes the great-circle distance between two points. The result
// is symmetric in its arguments and zero (within floating point tolerance)
// for identical points.
func Haversine(lat1, lon1, lat2, lon2 float64) Distance {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	km := earthRadiusKm * c

	return Distance{
		Kilometers: km,
		Miles:      km * 0.621371,
		Meters:     km * 1000,
	}
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}

// DMS is one coordinate in degrees, minutes, seconds form.
type DMS struct {
	Degrees int
	Minutes int
	Seconds float64
}

// ToDMS converts a decimal coordinate to degrees/minutes/seconds. Seconds are
// rounded to two decimal places.
func ToDMS(coord float64) DMS {
	absolute := math.Abs(coord)
	degrees := math.Floor(absolute)
	minutesFloat := (absolute - degrees) * 60
	minutes := math.Floor(minutesFloat)
	seconds := math.Round((minutesFloat-minutes)*60*100) / 100

	return DMS{
		Degrees: int(degrees),
		Minutes: int(minutes),
		Seconds: seconds,
	}
}

// FormatCoordinates renders a lat/lon pair for display, e.g.
// `37.7749°N, 122.4194°W`.
func FormatCoordinates(lat, lon float64, precision int) string {
	latDir := "N"
	if lat < 0 {
		latDir = "S"
	}
	lonDir := "E"
	if lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.*f°%s, %.*f°%s",
		precision, math.Abs(lat), latDir,
		precision, math.Abs(lon), lonDir,
	)
}

// FormatDMS renders a lat/lon pair in DMS notation, e.g.
// `37°46'29.64"N 122°25'9.84"W`.
func FormatDMS(lat, lon float64) string {
	latDMS := ToDMS(lat)
	lonDMS := ToDMS(lon)

	latDir := "N"
	if lat < 0 {
		latDir = "S"
	}
	lonDir := "E"
	if lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf(`%d°%d'%.2f"%s %d°%d'%.2f"%s`,
		latDMS.Degrees, latDMS.Minutes, latDMS.Seconds, latDir,
		lonDMS.Degrees, lonDMS.Minutes, lonDMS.Seconds, lonDir,
	)
}
