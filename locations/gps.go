package locations

import (
	"strings"
	"time"

	"github.com/camden-git/photoingest/media"
)

// Resolver is the part of Index the GPS precedence rule needs.
type Resolver interface {
	Resolve(ts time.Time) (lat, lng float64, err error)
}

// Source tells where a photo's coordinates came from.
type Source string

const (
	SourceNone    Source = ""
	SourceEXIF    Source = "exif"
	SourceHistory Source = "history"
)

// CoordinatesFromTags reads embedded GPS tags. All four of latitude,
// longitude and their reference letters must be present; S negates the
// latitude and W negates the longitude.
func CoordinatesFromTags(tags map[string]string) (lat, lng float64, ok bool) {
	latStr, ok1 := tags[media.TagGPSLatitude]
	lngStr, ok2 := tags[media.TagGPSLongitude]
	latRef, ok3 := tags[media.TagGPSLatitudeRef]
	lngRef, ok4 := tags[media.TagGPSLongitudeRef]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, false
	}

	lat, okLat := media.ParseNumber(latStr)
	lng, okLng := media.ParseNumber(lngStr)
	if !okLat || !okLng {
		return 0, 0, false
	}

	if strings.EqualFold(strings.TrimSpace(latRef), "S") && lat > 0 {
		lat = -lat
	}
	if strings.EqualFold(strings.TrimSpace(lngRef), "W") && lng > 0 {
		lng = -lng
	}
	return lat, lng, true
}

// Locate applies the precedence rule: complete embedded GPS tags win over a
// history lookup. r may be nil when no history is configured; the error is
// then ErrNoLocationData.
func Locate(tags map[string]string, capturedAt time.Time, r Resolver) (lat, lng float64, src Source, err error) {
	if lat, lng, ok := CoordinatesFromTags(tags); ok {
		return lat, lng, SourceEXIF, nil
	}
	if r == nil {
		return 0, 0, SourceNone, ErrNoLocationData
	}
	lat, lng, err = r.Resolve(capturedAt)
	if err != nil {
		return 0, 0, SourceNone, err
	}
	return lat, lng, SourceHistory, nil
}
