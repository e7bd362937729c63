// Package brackets groups auto-exposure-bracketed (AEB) shots into sets.
//
// Detection is streaming: shots are fed in capture order and a group is
// emitted as soon as a full, in-window sequence has accumulated.
package brackets

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/facette/natsort"
)

// DefaultMaxDuration is the longest a bracket sequence may take from its
// first to its last frame.
const DefaultMaxDuration = 5 * time.Second

// DefaultShotCount is assumed for a bracketed shot that does not declare a
// usable frame count.
const DefaultShotCount = 3

// Shot is the bracket-relevant part of a photo record.
type Shot struct {
	Path          string
	CapturedAt    time.Time
	Mode          int     // 0 means not bracketed
	ShotCount     int     // frames in the sequence this shot belongs to
	ExposureValue float64 // exposure compensation of this frame
}

// Group is one detected sequence, members in capture order.
type Group struct {
	ID    string
	Shots []Shot
}

// Paths returns the member paths in capture order.
func (g Group) Paths() []string {
	paths := make([]string, len(g.Shots))
	for i, s := range g.Shots {
		paths[i] = s.Path
	}
	return paths
}

// GroupID derives the id of a group from its members' file names, so that
// detecting the same sequence twice yields the same id.
func GroupID(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, "-")
}

// SortShots orders shots by capture time, breaking ties by natural filename
// order and then by full path.
func SortShots(shots []Shot) {
	sort.SliceStable(shots, func(i, j int) bool {
		a, b := shots[i], shots[j]
		if !a.CapturedAt.Equal(b.CapturedAt) {
			return a.CapturedAt.Before(b.CapturedAt)
		}
		an, bn := filepath.Base(a.Path), filepath.Base(b.Path)
		if an != bn {
			return natsort.Compare(an, bn)
		}
		return a.Path < b.Path
	})
}

// Detector accumulates bracket-flagged shots fed in capture order. It is not
// safe for concurrent use.
type Detector struct {
	maxDuration time.Duration
	pending     []Shot
}

func NewDetector(maxDuration time.Duration) *Detector {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Detector{maxDuration: maxDuration}
}

// Add feeds the next shot. It returns a group when s completes one.
//
// Shots with Mode 0 are ignored. Once the accumulator holds as many shots as
// s declares, the sequence is emitted if first-to-last fits the window and
// dropped entirely otherwise. A declared count below 2 means DefaultShotCount.
//
// An accumulator whose first shot is already further from s than the window
// allows is dropped before s is added. This departs from strictly waiting for
// a full window to fail: frames at 0s, 10s, 11s and 12s yield the last three
// as a group instead of nothing.
func (d *Detector) Add(s Shot) (Group, bool) {
	if s.Mode == 0 {
		return Group{}, false
	}

	if len(d.pending) > 0 && s.CapturedAt.Sub(d.pending[0].CapturedAt) > d.maxDuration {
		d.pending = nil
	}
	d.pending = append(d.pending, s)

	want := s.ShotCount
	if want < 2 {
		want = DefaultShotCount
	}
	if len(d.pending) < want {
		return Group{}, false
	}

	shots := d.pending
	d.pending = nil
	if shots[len(shots)-1].CapturedAt.Sub(shots[0].CapturedAt) > d.maxDuration {
		return Group{}, false
	}

	g := Group{Shots: shots}
	g.ID = GroupID(g.Paths())
	return g, true
}

// Pending returns the number of shots waiting for their sequence to
// complete. They are never emitted on their own.
func (d *Detector) Pending() int {
	return len(d.pending)
}

// Reset discards any partial sequence.
func (d *Detector) Reset() {
	d.pending = nil
}

// Detect sorts shots into capture order and runs them through a fresh
// Detector, returning every complete group.
func Detect(shots []Shot, maxDuration time.Duration) []Group {
	ordered := make([]Shot, len(shots))
	copy(ordered, shots)
	SortShots(ordered)

	d := NewDetector(maxDuration)
	var groups []Group
	for _, s := range ordered {
		if g, ok := d.Add(s); ok {
			groups = append(groups, g)
		}
	}
	return groups
}
