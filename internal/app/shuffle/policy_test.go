package shuffle

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isPermutation(perm []int, n int) bool {
	if len(perm) != n {
		return false
	}
	sorted := slices.Clone(perm)
	slices.Sort(sorted)
	for i, v := range sorted {
		if v != i {
			return false
		}
	}
	return true
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		settings map[string]any
		expected string
		wantErr  bool
	}{
		{name: "default is none", typ: "", expected: "none"},
		{name: "none", typ: "none", expected: "none"},
		{name: "random", typ: "random", settings: map[string]any{"seed": 7}, expected: "random"},
		{name: "current first", typ: "current_first", expected: "current_first"},
		{name: "bad settings", typ: "random", settings: map[string]any{"seed": "abc"}, wantErr: true},
		{name: "unknown type", typ: "smart", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.typ, tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Name())
		})
	}
}

func TestNone(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2, 3}, None{}.Permutation(4, 2))
	assert.Empty(t, None{}.Permutation(0, 0))
}

func TestRandom_SeedIsDeterministic(t *testing.T) {
	a, err := NewRandom(map[string]any{"seed": 42})
	require.NoError(t, err)
	b, err := NewRandom(map[string]any{"seed": 42})
	require.NoError(t, err)

	for range 10 {
		pa := a.Permutation(20, 0)
		assert.True(t, isPermutation(pa, 20))
		assert.Equal(t, pa, b.Permutation(20, 0))
	}
}

func TestCurrentFirst(t *testing.T) {
	p, err := NewCurrentFirst(map[string]any{"seed": 3})
	require.NoError(t, err)

	for current := range 8 {
		perm := p.Permutation(8, current)
		assert.True(t, isPermutation(perm, 8))
		assert.Equal(t, current, perm[0])
	}
}
