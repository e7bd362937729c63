package workers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/camden-git/photoingest/locations"
	"github.com/camden-git/photoingest/models"
	"github.com/camden-git/photoingest/repository"
)

// BackfillSummary counts the outcome of BackfillLocations.
type BackfillSummary struct {
	Considered  int
	FromEXIF    int
	FromHistory int
	Unavailable int
}

// Updated is the number of records that received coordinates.
func (s BackfillSummary) Updated() int {
	return s.FromEXIF + s.FromHistory
}

// BackfillLocations resolves coordinates for stored photos that have none,
// or for every stored photo when all is set, and queues the updates on ser.
// resolver may be nil, in which case only embedded GPS tags are used.
func BackfillLocations(ctx context.Context, store repository.PhotoRepositoryInterface, resolver locations.Resolver, ser *WriteSerializer, all bool, log *zap.Logger) (BackfillSummary, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		photos []models.Photo
		err    error
	)
	if all {
		photos, err = store.ListAll(ctx)
	} else {
		photos, err = store.ListMissingLocation(ctx)
	}
	if err != nil {
		return BackfillSummary{}, fmt.Errorf("listing photos for location backfill: %w", err)
	}

	summary := BackfillSummary{Considered: len(photos)}
	for i := range photos {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		p := &photos[i]

		lat, lng, src, err := locations.Locate(p.Tags, p.CapturedTime(), resolver)
		if err != nil {
			if !errors.Is(err, locations.ErrNoLocationData) {
				log.Warn("location lookup failed", zap.String("path", p.Path), zap.Error(err))
			}
			summary.Unavailable++
			continue
		}

		if err := ser.EnqueueLocation(p.Path, lat, lng); err != nil {
			return summary, fmt.Errorf("queueing location of %s: %w", p.Path, err)
		}
		if src == locations.SourceEXIF {
			summary.FromEXIF++
		} else {
			summary.FromHistory++
		}
	}

	log.Info("location backfill finished",
		zap.Int("considered", summary.Considered),
		zap.Int("from_exif", summary.FromEXIF),
		zap.Int("from_history", summary.FromHistory),
		zap.Int("unavailable", summary.Unavailable))
	return summary, nil
}
