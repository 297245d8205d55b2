// Package profile loads the Judge's per-request Profile from Postgres.
// Profiles are read-mostly configuration, not pipeline results — storing
// winning Decisions is an explicit non-goal of the pipeline itself.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waypointcast/tourguide/pipeline"
)

// Store loads Profiles by request id from a pgx connection pool. It is
// read-only: it loads profile configuration and writes nothing.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a connection pool against connString and verifies it
// with a Ping before returning.
func NewStore(ctx context.Context, connString string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// row mirrors the route_profiles columns Load selects (kind_weights is read
// as JSON); pipeline.Profile uses map/set types that do not map directly
// onto pgx scan targets.
type row struct {
	ForbidKinds     []string
	ForbiddenTopics []string
	MaxDurationSecs *int64
	MinAge          *int
	KindWeights     map[string]float64
	LanguagePrefs   []string
	InterestTags    []string
}

// Load fetches the Profile configured for requestID. A missing row
// returns pipeline.NewProfile() (neutral defaults) rather than an error,
// since an unconfigured request is not itself a fault.
func (s *Store) Load(ctx context.Context, requestID string) (pipeline.Profile, error) {
	const query = `
		SELECT forbid_kinds, forbidden_topics, max_duration_seconds, min_age,
		       kind_weights, language_prefs, interest_tags
		FROM route_profiles WHERE request_id = $1
	`
	var r row
	var kindWeightsJSON []byte
	err := s.pool.QueryRow(ctx, query, requestID).Scan(
		&r.ForbidKinds, &r.ForbiddenTopics, &r.MaxDurationSecs, &r.MinAge,
		&kindWeightsJSON, &r.LanguagePrefs, &r.InterestTags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.NewProfile(), nil
	}
	if err != nil {
		return pipeline.Profile{}, err
	}
	if len(kindWeightsJSON) > 0 {
		if err := json.Unmarshal(kindWeightsJSON, &r.KindWeights); err != nil {
			return pipeline.Profile{}, err
		}
	}
	return toProfile(r), nil
}

func toProfile(r row) pipeline.Profile {
	p := pipeline.NewProfile()
	for _, k := range r.ForbidKinds {
		p.ForbidKinds[pipeline.WorkerKind(k)] = struct{}{}
	}
	for _, t := range r.ForbiddenTopics {
		p.ForbiddenTopics[strings.ToLower(t)] = struct{}{}
	}
	if r.MaxDurationSecs != nil {
		p.MaxDuration = time.Duration(*r.MaxDurationSecs) * time.Second
		p.HasMaxDuration = true
	}
	if r.MinAge != nil {
		p.MinAge = *r.MinAge
		p.HasMinAge = true
	}
	for k, w := range r.KindWeights {
		p.KindWeight[pipeline.WorkerKind(k)] = w
	}
	p.LanguagePrefs = r.LanguagePrefs
	p.InterestTags = r.InterestTags
	return p
}
