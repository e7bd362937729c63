package locations

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/camden-git/photoingest/models"
)

// historyRecord is one entry of a location history export:
//
//	{"timestampMs": "1265928103110", "latitudeE7": -380005980, "longitudeE7": 1452375430, "accuracy": 1046}
//
// Newer exports carry "timestamp" as RFC 3339 instead of "timestampMs".
type historyRecord struct {
	TimestampMs json.Number `json:"timestampMs"`
	Timestamp   string      `json:"timestamp"`
	LatitudeE7  *int64      `json:"latitudeE7"`
	LongitudeE7 *int64      `json:"longitudeE7"`
	Accuracy    *int        `json:"accuracy"`
}

func (r historyRecord) sample() (models.LocationSample, error) {
	var s models.LocationSample
	if r.LatitudeE7 == nil || r.LongitudeE7 == nil {
		return s, errors.New("missing latitudeE7/longitudeE7")
	}

	switch {
	case r.TimestampMs != "":
		ms, err := strconv.ParseInt(r.TimestampMs.String(), 10, 64)
		if err != nil {
			return s, fmt.Errorf("bad timestampMs %q: %w", r.TimestampMs, err)
		}
		s.TimestampMs = ms
	case r.Timestamp != "":
		t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil {
			return s, fmt.Errorf("bad timestamp %q: %w", r.Timestamp, err)
		}
		s.TimestampMs = t.UnixMilli()
	default:
		return s, errors.New("missing timestamp")
	}

	s.LatitudeE7 = *r.LatitudeE7
	s.LongitudeE7 = *r.LongitudeE7
	s.Accuracy = r.Accuracy
	return s, nil
}

// ParseHistory streams a {"locations": [...]} document. Records are decoded
// one at a time so multi-gigabyte exports do not have to fit in memory twice.
func ParseHistory(r io.Reader) ([]models.LocationSample, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var samples []models.LocationSample
	found := false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read history key: %w", err)
		}
		key, _ := tok.(string)
		if key != "locations" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("failed to skip history field %q: %w", key, err)
			}
			continue
		}

		found = true
		if err := expectDelim(dec, '['); err != nil {
			return nil, err
		}
		for i := 0; dec.More(); i++ {
			var rec historyRecord
			if err := dec.Decode(&rec); err != nil {
				return nil, fmt.Errorf("failed to decode location %d: %w", i, err)
			}
			s, err := rec.sample()
			if err != nil {
				return nil, fmt.Errorf("location %d: %w", i, err)
			}
			samples = append(samples, s)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
	}

	if !found {
		return nil, errors.New(`history has no "locations" array`)
	}
	return samples, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read location history: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("malformed location history: expected %q, got %v", want, tok)
	}
	return nil
}
