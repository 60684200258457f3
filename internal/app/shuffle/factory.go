package shuffle

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// New creates the policy registered under typ.
func New(typ string, settings map[string]any) (Policy, error) {
	var policy Policy
	var err error
	switch typ {
	case "", "none":
		policy = None{}
	case "random":
		policy, err = NewRandom(settings)
	case "current_first":
		policy, err = NewCurrentFirst(settings)
	default:
		return nil, errors.Newf("unsupported shuffle type: %s", typ)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create shuffle policy (type %s)", typ)
	}

	zlog.Info().Msgf("shuffle: policy registered: type=%s", policy.Name())
	return policy, nil
}
