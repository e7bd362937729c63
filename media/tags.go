package media

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultBracketShots is assumed when a bracketed file does not say how many
// frames its sequence has.
const defaultBracketShots = 3

var exifDateLayouts = []string{
	"2006:01:02 15:04:05",
	"2006:01:02 15:04:05.000",
	"2006:01:02 15:04:05-07:00",
	"2006:01:02 15:04:05.000-07:00",
}

// ParseExifDate parses an EXIF date string in local time unless it carries
// an offset.
func ParseExifDate(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.Trim(s, "\"\x00"))
	for _, layout := range exifDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised EXIF date %q", s)
}

// fileModTime is the capture time fallback
func fileModTime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}

// captureTime prefers the DateTimeOriginal tag and falls back to the file
// modification time. The bool reports whether the fallback was used.
func captureTime(path string, tags map[string]string) (time.Time, bool, error) {
	if raw, ok := tags[TagDateTimeOriginal]; ok {
		if t, err := ParseExifDate(raw); err == nil {
			return t, false, nil
		}
	}
	t, err := fileModTime(path)
	if err != nil {
		return time.Time{}, true, err
	}
	return t, true, nil
}

// BracketFields derives bracket mode, shot count and exposure value from a
// tag map. Numeric values are expected (exiftool -n); printed forms such as
// "AEB" or "3 shots" are also understood.
func BracketFields(tags map[string]string) (mode, shots int, ev float64) {
	mode = parseBracketMode(tags[TagBracketMode])
	shots = 1
	if mode != 0 {
		shots = leadingInt(tags[TagBracketShotCount])
		if shots < 2 {
			shots = defaultBracketShots
		}
	}

	if v, ok := ParseNumber(tags[TagBracketValue]); ok {
		ev = v
	} else if v, ok := ParseNumber(tags[TagExposureCompensation]); ok {
		ev = v
	}
	return mode, shots, ev
}

func parseBracketMode(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if strings.EqualFold(s, "off") {
		return 0
	}
	return 1
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// ParseNumber accepts decimals ("-0.67", "+1") and rationals ("-2/3").
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Trim(s, "\"[]"))
	if s == "" {
		return 0, false
	}
	if num, den, found := strings.Cut(s, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
