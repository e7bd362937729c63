package models

// LocationSample is one entry of a location history. Coordinates are kept in
// the history's fixed-point form (degrees * 1e7). It is stored in the
// 'locations' table of the location database, not through GORM.
type LocationSample struct {
	TimestampMs int64 `json:"timestamp_ms"`
	LatitudeE7  int64 `json:"latitude_e7"`
	LongitudeE7 int64 `json:"longitude_e7"`
	Accuracy    *int  `json:"accuracy,omitempty"`
}

// Latitude returns the latitude in degrees.
func (s LocationSample) Latitude() float64 {
	return float64(s.LatitudeE7) / 1e7
}

// Longitude returns the longitude in degrees.
func (s LocationSample) Longitude() float64 {
	return float64(s.LongitudeE7) / 1e7
}
