// Package library resolves track ids into playable tracks.
package library

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/jukebox/internal/domain/track"
)

// ErrUnknownTracks is returned when some ids cannot be resolved.
var ErrUnknownTracks = errors.New("unknown tracks")

// Catalog is the local track store.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]track.Track, error)
	Upsert(ctx context.Context, tracks []track.Track) error
}

// Lookup is a remote track source. Results are keyed by the requested id.
type Lookup interface {
	GetTracks(ctx context.Context, ids []string) (map[string]track.Track, error)
}

// Library resolves ids against the catalog first and the remote lookup second.
// Either source may be nil.
type Library struct {
	catalog Catalog
	lookup  Lookup
}

// New creates a library.
func New(catalog Catalog, lookup Lookup) *Library {
	return &Library{catalog: catalog, lookup: lookup}
}

// Resolve returns the tracks for ids in the requested order.
// Tracks fetched remotely are written back to the catalog.
func (l *Library) Resolve(ctx context.Context, ids []string) ([]track.Track, error) {
	ids = normalize(ids)
	if len(ids) == 0 {
		return []track.Track{}, nil
	}

	found, err := l.fromCatalog(ctx, ids)
	if err != nil {
		return nil, err
	}

	missing := missingIDs(ids, found)
	if len(missing) > 0 && l.lookup != nil {
		fetched, err := l.lookup.GetTracks(ctx, missing)
		if err != nil {
			return nil, errors.Wrap(err, "failed to look up tracks")
		}
		for id, t := range fetched {
			found[id] = t
		}
		l.store(ctx, fetched)
		missing = missingIDs(ids, found)
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(ErrUnknownTracks, "ids=%s", strings.Join(missing, ","))
	}

	tracks := make([]track.Track, len(ids))
	for i, id := range ids {
		tracks[i] = found[id]
	}
	return tracks, nil
}

// Import looks ids up remotely and stores them in the catalog.
// It returns the imported tracks in the requested order.
func (l *Library) Import(ctx context.Context, ids []string) ([]track.Track, error) {
	if l.lookup == nil || l.catalog == nil {
		return nil, errors.New("import needs both a catalog and a remote lookup")
	}

	ids = normalize(ids)
	fetched, err := l.lookup.GetTracks(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up tracks")
	}
	if missing := missingIDs(ids, fetched); len(missing) > 0 {
		return nil, errors.Wrapf(ErrUnknownTracks, "ids=%s", strings.Join(missing, ","))
	}

	tracks := make([]track.Track, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		t := fetched[id]
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		tracks = append(tracks, t)
	}
	if err := l.catalog.Upsert(ctx, tracks); err != nil {
		return nil, errors.Wrap(err, "failed to store tracks")
	}

	zlog.Info().Msgf("library: imported: count=%d", len(tracks))
	return tracks, nil
}

func (l *Library) fromCatalog(ctx context.Context, ids []string) (map[string]track.Track, error) {
	if l.catalog == nil {
		return make(map[string]track.Track, len(ids)), nil
	}
	found, err := l.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog")
	}
	return found, nil
}

// store writes fetched tracks back to the catalog. Failures only cost a
// later remote lookup, so they are logged.
func (l *Library) store(ctx context.Context, fetched map[string]track.Track) {
	if l.catalog == nil || len(fetched) == 0 {
		return
	}
	tracks := make([]track.Track, 0, len(fetched))
	seen := make(map[string]bool, len(fetched))
	for _, t := range fetched {
		if !seen[t.ID] {
			seen[t.ID] = true
			tracks = append(tracks, t)
		}
	}
	if err := l.catalog.Upsert(ctx, tracks); err != nil {
		zlog.Warn().Err(err).Msg("library: failed to cache tracks")
	}
}

func normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(ids []string, found map[string]track.Track) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if _, ok := found[id]; !ok && !seen[id] {
			seen[id] = true
			missing = append(missing, id)
		}
	}
	return missing
}
