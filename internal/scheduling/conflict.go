package scheduling

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Entry is an active schedule entry as seen by the detector.
type Entry struct {
	ID        string
	CourseID  string
	Interval  TimeInterval
	CreatedAt time.Time
}

// EntrySource loads the active entries of a course on one weekday.
type EntrySource interface {
	ActiveEntries(ctx context.Context, courseID string, day Weekday) ([]Entry, error)
}

// Conflict is the outcome of a conflict check.
type Conflict struct {
	Found bool
	Entry *Entry
}

// ScheduleConflictError carries the entry a candidate collided with.
type ScheduleConflictError struct {
	Candidate TimeInterval
	Existing  Entry
}

// Error implements error.
func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("%s overlaps entry %s (%s)", e.Candidate, e.Existing.ID, e.Existing.Interval)
}

// Unwrap exposes the sentinel so errors.Is(err, ErrScheduleConflict) holds.
func (e *ScheduleConflictError) Unwrap() error {
	return ErrScheduleConflict
}

// Err converts a found conflict into an error, nil otherwise.
func (c Conflict) Err(candidate TimeInterval) error {
	if !c.Found || c.Entry == nil {
		return nil
	}
	return &ScheduleConflictError{Candidate: candidate, Existing: *c.Entry}
}

// FindConflict returns the earliest created entry overlapping candidate.
// Entries with ID excludeID are skipped so an entry can be moved in place.
func FindConflict(entries []Entry, candidate TimeInterval, excludeID string) Conflict {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	for i := range ordered {
		entry := ordered[i]
		if excludeID != "" && entry.ID == excludeID {
			continue
		}
		if entry.Interval.Overlaps(candidate) {
			return Conflict{Found: true, Entry: &entry}
		}
	}
	return Conflict{}
}

// Detector checks candidates against the stored timetable of a course.
type Detector struct {
	source EntrySource
}

// NewDetector builds a Detector over source.
func NewDetector(source EntrySource) *Detector {
	return &Detector{source: source}
}

// CheckConflict loads the active entries sharing the candidate's weekday and
// returns the first overlapping one.
func (d *Detector) CheckConflict(ctx context.Context, courseID string, candidate TimeInterval, excludeID string) (Conflict, error) {
	entries, err := d.source.ActiveEntries(ctx, courseID, candidate.Weekday)
	if err != nil {
		return Conflict{}, fmt.Errorf("load active entries: %w", err)
	}
	return FindConflict(entries, candidate, excludeID), nil
}
