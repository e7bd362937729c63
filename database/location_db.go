package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/camden-git/photoingest/models"
)

// insertBatchSize keeps each multi-row INSERT under SQLite's variable limit.
const insertBatchSize = 200

// HistoryVersion identifies the history file a locations table was loaded from.
type HistoryVersion struct {
	SourcePath   string
	ModifiedUnix int64
	Size         int64
	Checksum     string
	SampleCount  int
}

// GetHistoryVersion returns the stored version row, or sql.ErrNoRows when the
// table has never been loaded.
func GetHistoryVersion(db Querier) (HistoryVersion, error) {
	var v HistoryVersion
	queryBuilder := psql.Select("source_path", "modified_unix", "size", "checksum", "sample_count").
		From("history_version").
		Where("id = 1")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return HistoryVersion{}, fmt.Errorf("failed to build SQL query for GetHistoryVersion: %w", err)
	}

	err = db.QueryRow(sqlStr, args...).Scan(&v.SourcePath, &v.ModifiedUnix, &v.Size, &v.Checksum, &v.SampleCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return HistoryVersion{}, sql.ErrNoRows
		}
		return HistoryVersion{}, fmt.Errorf("failed to query history version: %w", err)
	}
	return v, nil
}

// SetHistoryVersion inserts or updates the single version row
func SetHistoryVersion(db Querier, v HistoryVersion) error {
	queryBuilder := psql.Insert("history_version").
		Columns("id", "source_path", "modified_unix", "size", "checksum", "sample_count").
		Values(1, v.SourcePath, v.ModifiedUnix, v.Size, v.Checksum, v.SampleCount).
		Suffix("ON CONFLICT(id) DO UPDATE SET").
		Suffix("source_path = excluded.source_path,").
		Suffix("modified_unix = excluded.modified_unix,").
		Suffix("size = excluded.size,").
		Suffix("checksum = excluded.checksum,").
		Suffix("sample_count = excluded.sample_count")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for SetHistoryVersion: %w", err)
	}
	if _, err = db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to set history version: %w", err)
	}
	return nil
}

// ReplaceLocations deletes every stored sample and inserts samples. Run it in
// a transaction so readers never observe a half-loaded table.
func ReplaceLocations(tx *sql.Tx, samples []models.LocationSample) error {
	if _, err := tx.Exec("DELETE FROM locations"); err != nil {
		return fmt.Errorf("failed to clear locations: %w", err)
	}

	for start := 0; start < len(samples); start += insertBatchSize {
		end := min(start+insertBatchSize, len(samples))

		queryBuilder := psql.Insert("locations").Columns("timestamp", "lat", "lng", "accuracy")
		for _, s := range samples[start:end] {
			queryBuilder = queryBuilder.Values(s.TimestampMs, s.LatitudeE7, s.LongitudeE7, s.Accuracy)
		}

		sqlStr, args, err := queryBuilder.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build SQL query for ReplaceLocations: %w", err)
		}
		if _, err = tx.Exec(sqlStr, args...); err != nil {
			return fmt.Errorf("failed to insert locations %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// NearestAtOrAfter returns the earliest sample with timestamp >= ts.
func NearestAtOrAfter(db Querier, ts int64) (models.LocationSample, bool, error) {
	return nearest(db, "timestamp >= ?", ts, "timestamp ASC")
}

// NearestAtOrBefore returns the latest sample with timestamp <= ts.
func NearestAtOrBefore(db Querier, ts int64) (models.LocationSample, bool, error) {
	return nearest(db, "timestamp <= ?", ts, "timestamp DESC")
}

func nearest(db Querier, pred string, ts int64, order string) (models.LocationSample, bool, error) {
	var s models.LocationSample
	var accuracy sql.NullInt64

	queryBuilder := psql.Select("timestamp", "lat", "lng", "accuracy").
		From("locations").
		Where(pred, ts).
		OrderBy(order, "rowid ASC").
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return s, false, fmt.Errorf("failed to build SQL query for nearest location: %w", err)
	}

	err = db.QueryRow(sqlStr, args...).Scan(&s.TimestampMs, &s.LatitudeE7, &s.LongitudeE7, &accuracy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, false, nil
		}
		return s, false, fmt.Errorf("failed to query nearest location to %d: %w", ts, err)
	}
	if accuracy.Valid {
		a := int(accuracy.Int64)
		s.Accuracy = &a
	}
	return s, true, nil
}

// CountLocations returns the number of stored samples
func CountLocations(db Querier) (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM locations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count locations: %w", err)
	}
	return n, nil
}
