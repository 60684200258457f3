// Package queue provides the ordered track queue and its position arithmetic.
package queue

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/jukebox/internal/domain/track"
)

// ErrInvalidPermutation is returned when a permutation does not match the queue.
var ErrInvalidPermutation = errors.New("invalid permutation")

// Queue is an ordered list of tracks with a current position.
// For a non-empty queue Position is always within [0, len(Tracks)).
type Queue struct {
	Tracks   []track.Track
	Position int
	Repeat   bool
}

// Len returns the number of tracks.
func (q *Queue) Len() int {
	return len(q.Tracks)
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return len(q.Tracks) == 0
}

// Current returns the track at the current position.
func (q *Queue) Current() (track.Track, bool) {
	if q.Position < 0 || q.Position >= len(q.Tracks) {
		return track.Track{}, false
	}
	return q.Tracks[q.Position], true
}

// IsValidIndex reports whether i addresses a track in the queue.
func (q *Queue) IsValidIndex(i int) bool {
	return i >= 0 && i < len(q.Tracks)
}

// Replace replaces all tracks and sets the position (clamped to the new length).
func (q *Queue) Replace(tracks []track.Track, position int) {
	q.Tracks = append([]track.Track(nil), tracks...)
	q.Position = q.clamp(position)
}

// Move replaces the track order without touching the position,
// except to clamp it when the new list is shorter.
func (q *Queue) Move(tracks []track.Track) {
	q.Tracks = append([]track.Track(nil), tracks...)
	q.Position = q.clamp(q.Position)
}

// Remove drops the track at index i.
// A position after the removed index shifts down by one so it keeps
// pointing at the same track; a position left past the end rotates to 0.
func (q *Queue) Remove(i int) bool {
	if !q.IsValidIndex(i) {
		return false
	}

	tracks := make([]track.Track, 0, len(q.Tracks)-1)
	tracks = append(tracks, q.Tracks[:i]...)
	tracks = append(tracks, q.Tracks[i+1:]...)
	q.Tracks = tracks

	if q.Position > i {
		q.Position--
	}
	if q.Position >= len(q.Tracks) {
		q.Position = 0
	}
	return true
}

// IsLast returns true if the position is at the last track.
func (q *Queue) IsLast() bool {
	return q.Position+1 == len(q.Tracks)
}

// CanAdvance returns true if moving forward should keep playing.
func (q *Queue) CanAdvance() bool {
	return q.Repeat || !q.IsLast()
}

// Advance moves forward one track, wrapping to 0 after the last one.
func (q *Queue) Advance() {
	if q.IsEmpty() {
		q.Position = 0
		return
	}
	if q.IsLast() {
		q.Position = 0
		return
	}
	q.Position++
}

// CanRetreat returns true if moving backward should keep playing.
func (q *Queue) CanRetreat() bool {
	return q.Position != 0
}

// Retreat moves back one track; it never goes below 0.
func (q *Queue) Retreat() {
	if q.Position > 0 {
		q.Position--
	}
}

// Permute reorders the tracks so that new[i] = old[perm[i]].
// The position follows the track that was current.
func (q *Queue) Permute(perm []int) error {
	if len(perm) != len(q.Tracks) {
		return errors.Wrapf(ErrInvalidPermutation, "length %d, want %d", len(perm), len(q.Tracks))
	}

	seen := make([]bool, len(perm))
	tracks := make([]track.Track, len(perm))
	position := q.Position
	for i, from := range perm {
		if from < 0 || from >= len(perm) || seen[from] {
			return errors.Wrapf(ErrInvalidPermutation, "bad index %d at %d", from, i)
		}
		seen[from] = true
		tracks[i] = q.Tracks[from]
		if from == q.Position {
			position = i
		}
	}

	q.Tracks = tracks
	q.Position = position
	return nil
}

// TrackIDs returns all track IDs in order.
func (q *Queue) TrackIDs() []string {
	ids := make([]string, len(q.Tracks))
	for i, t := range q.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TotalDuration returns the total duration of all tracks.
func (q *Queue) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range q.Tracks {
		total += t.Duration()
	}
	return total
}

func (q *Queue) clamp(position int) int {
	if len(q.Tracks) == 0 || position < 0 {
		return 0
	}
	if position >= len(q.Tracks) {
		return len(q.Tracks) - 1
	}
	return position
}
