package workers

import (
	"sync"
)

// Event is a per-file progress state reported during a scan.
type Event string

const (
	EventStart            Event = "start"
	EventAlreadyProcessed Event = "already_processed"
	EventEnd              Event = "end"
	EventError            Event = "error"
	EventDone             Event = "done" // once per scan, Path is empty
)

// Progress is one entry of the scan event stream.
type Progress struct {
	Path  string
	Event Event
	Err   *FileError // set for EventError
}

// ProgressFunc receives scan events. The orchestrator serializes calls, so
// implementations need no locking of their own.
type ProgressFunc func(Progress)

// serializedProgress funnels events from every worker through one mutex and
// keeps the scan tallies. A queued write can fail on either side of its
// file's EventEnd; either way the file counts as failed, not processed.
type serializedProgress struct {
	mu      sync.Mutex
	fn      ProgressFunc
	summary *ScanSummary

	ended       map[string]bool
	writeFailed map[string]bool
}

func (s *serializedProgress) emit(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended == nil {
		s.ended = make(map[string]bool)
		s.writeFailed = make(map[string]bool)
	}

	switch p.Event {
	case EventAlreadyProcessed:
		s.summary.Skipped++
	case EventEnd:
		if !s.writeFailed[p.Path] {
			s.summary.Processed++
			s.ended[p.Path] = true
		}
	case EventError:
		s.summary.Failed++
		if p.Err != nil {
			s.summary.Errors = append(s.summary.Errors, p.Err)
			if p.Err.Category == CategoryWriteFailure {
				if s.ended[p.Path] {
					s.summary.Processed--
					delete(s.ended, p.Path)
				}
				s.writeFailed[p.Path] = true
			}
		}
	}
	if s.fn != nil {
		s.fn(p)
	}
}
