package queue

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/jukebox/internal/domain/track"
)

func tracks(n int) []track.Track {
	result := make([]track.Track, n)
	for i := range result {
		result[i] = track.Track{ID: fmt.Sprintf("track-%d", i), DurationMs: 1000 * (i + 1)}
	}
	return result
}

func TestQueue_Replace(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		position int
		expected int
	}{
		{name: "in range", count: 3, position: 1, expected: 1},
		{name: "negative clamps to 0", count: 3, position: -1, expected: 0},
		{name: "past end clamps to last", count: 3, position: 5, expected: 2},
		{name: "empty queue", count: 0, position: 3, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Queue{}
			q.Replace(tracks(tt.count), tt.position)
			assert.Equal(t, tt.count, q.Len())
			assert.Equal(t, tt.expected, q.Position)
		})
	}
}

func TestQueue_Replace_CopiesInput(t *testing.T) {
	in := tracks(2)
	q := &Queue{}
	q.Replace(in, 0)
	in[0].Name = "mutated"
	assert.Empty(t, q.Tracks[0].Name)
}

func TestQueue_Remove(t *testing.T) {
	tests := []struct {
		name        string
		count       int
		position    int
		removeIndex int
		ok          bool
		expected    int
	}{
		{name: "before current decrements", count: 5, position: 3, removeIndex: 1, ok: true, expected: 2},
		{name: "at current keeps position", count: 5, position: 3, removeIndex: 3, ok: true, expected: 3},
		{name: "after current keeps position", count: 5, position: 1, removeIndex: 4, ok: true, expected: 1},
		{name: "current last removed rotates", count: 3, position: 2, removeIndex: 2, ok: true, expected: 0},
		{name: "only track removed", count: 1, position: 0, removeIndex: 0, ok: true, expected: 0},
		{name: "negative index ignored", count: 3, position: 1, removeIndex: -1, ok: false, expected: 1},
		{name: "out of range ignored", count: 3, position: 1, removeIndex: 3, ok: false, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Queue{}
			q.Replace(tracks(tt.count), tt.position)

			ok := q.Remove(tt.removeIndex)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, q.Position)
			if tt.ok {
				assert.Equal(t, tt.count-1, q.Len())
				assert.NotContains(t, q.TrackIDs(), fmt.Sprintf("track-%d", tt.removeIndex))
			}
		})
	}
}

func TestQueue_Remove_KeepsLogicalTrack(t *testing.T) {
	q := &Queue{}
	q.Replace(tracks(4), 2)

	require.True(t, q.Remove(0))

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "track-2", cur.ID)
}

func TestQueue_Advance(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		position   int
		repeat     bool
		canAdvance bool
		expected   int
	}{
		{name: "middle", count: 3, position: 0, canAdvance: true, expected: 1},
		{name: "last without repeat", count: 3, position: 2, canAdvance: false, expected: 0},
		{name: "last with repeat", count: 3, position: 2, repeat: true, canAdvance: true, expected: 0},
		{name: "single track", count: 1, position: 0, canAdvance: false, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Queue{Repeat: tt.repeat}
			q.Replace(tracks(tt.count), tt.position)

			assert.Equal(t, tt.canAdvance, q.CanAdvance())
			q.Advance()
			assert.Equal(t, tt.expected, q.Position)
		})
	}
}

func TestQueue_Retreat(t *testing.T) {
	q := &Queue{}
	q.Replace(tracks(3), 1)

	assert.True(t, q.CanRetreat())
	q.Retreat()
	assert.Equal(t, 0, q.Position)

	assert.False(t, q.CanRetreat())
	q.Retreat()
	assert.Equal(t, 0, q.Position)
}

func TestQueue_Move(t *testing.T) {
	q := &Queue{}
	q.Replace(tracks(3), 2)

	reordered := []track.Track{q.Tracks[2], q.Tracks[0], q.Tracks[1]}
	q.Move(reordered)
	assert.Equal(t, 2, q.Position, "move does not re-resolve by identity")
	assert.Equal(t, []string{"track-2", "track-0", "track-1"}, q.TrackIDs())

	q.Move(tracks(1))
	assert.Equal(t, 0, q.Position, "shorter list clamps position")
}

func TestQueue_Permute(t *testing.T) {
	q := &Queue{}
	q.Replace(tracks(4), 1)

	require.NoError(t, q.Permute([]int{3, 1, 0, 2}))
	assert.Equal(t, []string{"track-3", "track-1", "track-0", "track-2"}, q.TrackIDs())
	assert.Equal(t, 1, q.Position)

	require.NoError(t, q.Permute([]int{1, 0, 2, 3}))
	assert.Equal(t, 0, q.Position)
	cur, _ := q.Current()
	assert.Equal(t, "track-1", cur.ID)
}

func TestQueue_Permute_Invalid(t *testing.T) {
	tests := []struct {
		name string
		perm []int
	}{
		{name: "wrong length", perm: []int{0, 1}},
		{name: "duplicate", perm: []int{0, 0, 1}},
		{name: "out of range", perm: []int{0, 1, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Queue{}
			q.Replace(tracks(3), 0)
			err := q.Permute(tt.perm)
			assert.ErrorIs(t, err, ErrInvalidPermutation)
			assert.Equal(t, []string{"track-0", "track-1", "track-2"}, q.TrackIDs())
		})
	}
}

func TestQueue_TotalDuration(t *testing.T) {
	q := &Queue{}
	q.Replace(tracks(3), 0)
	assert.Equal(t, 6*time.Second, q.TotalDuration())
}

func TestQueue_PositionAlwaysValid(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	q := &Queue{}
	q.Replace(tracks(5), 0)

	for step := range 2000 {
		switch rng.IntN(5) {
		case 0:
			if !q.IsEmpty() {
				q.Advance()
			}
		case 1:
			q.Retreat()
		case 2:
			q.Remove(rng.IntN(q.Len() + 1))
		case 3:
			n := rng.IntN(8)
			q.Replace(tracks(n), rng.IntN(n+2)-1)
		case 4:
			q.Repeat = !q.Repeat
		}

		if !q.IsEmpty() {
			require.GreaterOrEqual(t, q.Position, 0, "step %d", step)
			require.Less(t, q.Position, q.Len(), "step %d", step)
		}
	}
}
