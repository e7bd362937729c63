package workers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/photoingest/brackets"
	"github.com/camden-git/photoingest/repository"
)

// DetectBrackets runs the streaming detector over every bracket-flagged
// photo in the store and queues the membership of each group found. The
// writes are applied by ser; callers that need them durable must Flush or
// Stop it. Running it twice over the same records yields the same groups.
func DetectBrackets(ctx context.Context, store repository.PhotoRepositoryInterface, ser *WriteSerializer, maxDuration time.Duration, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	candidates, err := store.ListBracketCandidates(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing bracket candidates: %w", err)
	}

	shots := make([]brackets.Shot, 0, len(candidates))
	for _, p := range candidates {
		shots = append(shots, brackets.Shot{
			Path:          p.Path,
			CapturedAt:    p.CapturedTime(),
			Mode:          p.BracketMode,
			ShotCount:     p.BracketShotCount,
			ExposureValue: p.BracketExposureValue,
		})
	}

	groups := brackets.Detect(shots, maxDuration)
	queued := 0
	for _, g := range groups {
		if err := ser.EnqueueGroup(g.Paths()); err != nil {
			return queued, fmt.Errorf("queueing bracket group %s: %w", g.ID, err)
		}
		queued++
	}

	log.Info("bracket detection finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("groups", queued),
		zap.Duration("max_duration", maxDuration))
	return queued, nil
}
