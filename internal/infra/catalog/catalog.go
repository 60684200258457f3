// Package catalog persists tracks in a SQL database (SQLite or PostgreSQL).
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	zlog "github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/osa030/jukebox/internal/domain/track"
)

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents catalog database configuration.
type Config struct {
	Driver string
	DSN    string
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		artists TEXT NOT NULL DEFAULT '[]',
		artwork_s TEXT NOT NULL DEFAULT '',
		artwork_m TEXT NOT NULL DEFAULT '',
		artwork_l TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS spotify_tracks (
		track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		spotify_id TEXT NOT NULL,
		PRIMARY KEY (track_id, position)
	)`,
}

// Repository reads and writes tracks.
type Repository struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and runs migrations.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, errors.Newf("unknown catalog driver: %s", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if cfg.Driver == DriverSQLite {
		// One connection keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	r := &Repository{db: db, driver: cfg.Driver}
	if err := r.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Migrate creates the schema if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := r.db.ExecContext(ctx, m); err != nil {
			return errors.Wrapf(err, "failed to execute migration: %s", m)
		}
	}
	zlog.Debug().Msgf("catalog: migrations completed: driver=%s", r.driver)
	return nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// FindByIDs returns the known tracks keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []string) (map[string]track.Track, error) {
	found := make(map[string]track.Track, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	in := placeholders(len(ids))

	rows, err := r.db.QueryContext(ctx, r.rebind(
		`SELECT id, name, artists, artwork_s, artwork_m, artwork_l, duration_ms
		FROM tracks WHERE id IN (`+in+`)`), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tracks")
	}
	defer rows.Close()

	for rows.Next() {
		var t track.Track
		var artists string
		if err := rows.Scan(&t.ID, &t.Name, &artists, &t.ArtworkS, &t.ArtworkM, &t.ArtworkL, &t.DurationMs); err != nil {
			return nil, errors.Wrap(err, "failed to scan track")
		}
		if err := json.Unmarshal([]byte(artists), &t.Artists); err != nil {
			return nil, errors.Wrapf(err, "invalid artists: id=%s", t.ID)
		}
		found[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read tracks")
	}
	rows.Close()
	if len(found) == 0 {
		return found, nil
	}

	handles, err := r.db.QueryContext(ctx, r.rebind(
		`SELECT track_id, spotify_id FROM spotify_tracks
		WHERE track_id IN (`+in+`) ORDER BY track_id, position`), args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query spotify tracks")
	}
	defer handles.Close()

	for handles.Next() {
		var trackID, spotifyID string
		if err := handles.Scan(&trackID, &spotifyID); err != nil {
			return nil, errors.Wrap(err, "failed to scan spotify track")
		}
		t := found[trackID]
		t.SpotifyTracks = append(t.SpotifyTracks, track.SpotifyTrack{SpotifyID: spotifyID})
		found[trackID] = t
	}
	return found, errors.Wrap(handles.Err(), "failed to read spotify tracks")
}

// Upsert inserts or replaces tracks and their Spotify handles.
func (r *Repository) Upsert(ctx context.Context, tracks []track.Track) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tracks {
			if t.ID == "" {
				return errors.New("track id is required")
			}
			artists, err := json.Marshal(nonNil(t.Artists))
			if err != nil {
				return errors.Wrap(err, "failed to encode artists")
			}

			if _, err := tx.ExecContext(ctx, r.rebind(`
				INSERT INTO tracks (id, name, artists, artwork_s, artwork_m, artwork_l, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					name = excluded.name,
					artists = excluded.artists,
					artwork_s = excluded.artwork_s,
					artwork_m = excluded.artwork_m,
					artwork_l = excluded.artwork_l,
					duration_ms = excluded.duration_ms`),
				t.ID, t.Name, string(artists), t.ArtworkS, t.ArtworkM, t.ArtworkL, t.DurationMs); err != nil {
				return errors.Wrapf(err, "failed to upsert track: id=%s", t.ID)
			}

			if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM spotify_tracks WHERE track_id = ?`), t.ID); err != nil {
				return errors.Wrapf(err, "failed to clear spotify tracks: id=%s", t.ID)
			}
			for i, st := range t.SpotifyTracks {
				if _, err := tx.ExecContext(ctx, r.rebind(
					`INSERT INTO spotify_tracks (track_id, position, spotify_id) VALUES (?, ?, ?)`),
					t.ID, i, st.SpotifyID); err != nil {
					return errors.Wrapf(err, "failed to insert spotify track: id=%s", t.ID)
				}
			}
		}
		return nil
	})
}

// Delete removes a track. Removing an unknown id is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM spotify_tracks WHERE track_id = ?`), id); err != nil {
			return errors.Wrapf(err, "failed to delete spotify tracks: id=%s", id)
		}
		if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM tracks WHERE id = ?`), id); err != nil {
			return errors.Wrapf(err, "failed to delete track: id=%s", id)
		}
		return nil
	})
}

// withTx executes fn within a transaction.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit")
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
