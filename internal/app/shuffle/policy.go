// Package shuffle provides the reordering policies behind the SHUFFLE command.
package shuffle

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// Policy decides how a queue is reordered.
type Policy interface {
	// Permutation returns perm such that new[i] = old[perm[i]] for a queue
	// of n tracks whose current position is current.
	Permutation(n, current int) []int

	// Name returns the policy name (used in config).
	Name() string
}

// None keeps the order unchanged.
type None struct{}

// Permutation returns the identity.
func (None) Permutation(n, _ int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	return perm
}

// Name returns "none".
func (None) Name() string { return "none" }

// RandomConfig holds settings for the random policies.
type RandomConfig struct {
	Seed uint64 `yaml:"seed" mapstructure:"seed"` // 0 seeds from the clock
}

// Random orders tracks uniformly at random.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a Random policy from settings.
func NewRandom(settings map[string]any) (*Random, error) {
	config, err := decode(settings)
	if err != nil {
		return nil, err
	}
	return &Random{rng: newRand(config.Seed)}, nil
}

// Permutation returns a random permutation.
func (r *Random) Permutation(n, _ int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Perm(n)
}

// Name returns "random".
func (r *Random) Name() string { return "random" }

// CurrentFirst orders tracks at random but moves the current track to the top,
// so playback continues while the rest of the queue is reshuffled.
type CurrentFirst struct {
	random *Random
}

// NewCurrentFirst creates a CurrentFirst policy from settings.
func NewCurrentFirst(settings map[string]any) (*CurrentFirst, error) {
	r, err := NewRandom(settings)
	if err != nil {
		return nil, err
	}
	return &CurrentFirst{random: r}, nil
}

// Permutation returns a random permutation starting with current.
func (c *CurrentFirst) Permutation(n, current int) []int {
	perm := c.random.Permutation(n, current)
	for i, from := range perm {
		if from == current {
			perm[0], perm[i] = perm[i], perm[0]
			break
		}
	}
	return perm
}

// Name returns "current_first".
func (c *CurrentFirst) Name() string { return "current_first" }

func decode(settings map[string]any) (RandomConfig, error) {
	var config RandomConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return config, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return config, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return config, errors.Wrap(err, "validation failed")
	}
	zlog.Debug().Msgf("shuffle: random config: %+v", config)
	return config, nil
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
