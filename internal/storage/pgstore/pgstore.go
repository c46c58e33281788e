// Package pgstore persists match results to PostgreSQL.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preston-bernstein/oddsharvester/internal/domain"
)

const sinkName = "postgres"

const schema = `
CREATE TABLE IF NOT EXISTS matches (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL,
	sport        TEXT NOT NULL,
	league       TEXT,
	scheduled_at TIMESTAMPTZ,
	home_team    TEXT NOT NULL,
	away_team    TEXT NOT NULL,
	venue        TEXT,
	home_score   TEXT,
	away_score   TEXT,
	last_run_id  TEXT,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS odds_records (
	match_id     TEXT NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
	market       TEXT NOT NULL,
	period       TEXT NOT NULL,
	line         TEXT NOT NULL DEFAULT '',
	bookmaker    TEXT NOT NULL,
	odds         JSONB NOT NULL,
	history      JSONB,
	collected_at TIMESTAMPTZ NOT NULL,
	run_id       TEXT,
	PRIMARY KEY (match_id, market, period, line, bookmaker)
);`

const upsertMatch = `
	INSERT INTO matches (
		id, url, sport, league, scheduled_at, home_team, away_team, venue,
		home_score, away_score, last_run_id, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	ON CONFLICT (id) DO UPDATE SET
		url          = EXCLUDED.url,
		league       = EXCLUDED.league,
		scheduled_at = EXCLUDED.scheduled_at,
		venue        = EXCLUDED.venue,
		home_score   = EXCLUDED.home_score,
		away_score   = EXCLUDED.away_score,
		last_run_id  = EXCLUDED.last_run_id,
		updated_at   = NOW()`

const upsertRecord = `
	INSERT INTO odds_records (
		match_id, market, period, line, bookmaker, odds, history, collected_at, run_id
	) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9)
	ON CONFLICT (match_id, market, period, line, bookmaker) DO UPDATE SET
		odds         = EXCLUDED.odds,
		history      = EXCLUDED.history,
		collected_at = EXCLUDED.collected_at,
		run_id       = EXCLUDED.run_id`

// Config holds connection parameters.
type Config struct {
	DSN      string
	MaxConns int
}

// Store upserts matches and their odds records.
type Store struct {
	pool *pgxpool.Pool
}

// New connects, pings and applies the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("pgstore: dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Name() string { return sinkName }

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Save writes the match and its records in one transaction.
func (s *Store) Save(ctx context.Context, runID string, result domain.MatchResult) error {
	if result.Match.ID == "" {
		return &domain.StorageError{Sink: sinkName, Err: errors.New("match id required")}
	}
	rows, err := recordArgs(runID, result)
	if err != nil {
		return &domain.StorageError{Sink: sinkName, MatchID: result.Match.ID, Err: err}
	}

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertMatch, matchArgs(runID, result.Match)...); err != nil {
			return fmt.Errorf("upsert match: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, args := range rows {
			batch.Queue(upsertRecord, args...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert records: %w", err)
		}
		return nil
	})
	if err != nil {
		return &domain.StorageError{Sink: sinkName, MatchID: result.Match.ID, Err: err}
	}
	return nil
}

func matchArgs(runID string, m domain.Match) []any {
	var home, away *string
	if m.Score != nil {
		home, away = &m.Score.Home, &m.Score.Away
	}
	var scheduled any
	if !m.ScheduledAt.IsZero() {
		scheduled = m.ScheduledAt
	}
	return []any{
		m.ID, m.URL, string(m.Sport), m.League, scheduled,
		m.HomeTeam, m.AwayTeam, m.Venue, home, away, runID,
	}
}

func recordArgs(runID string, result domain.MatchResult) ([][]any, error) {
	rows := make([][]any, 0, len(result.Records))
	for _, rec := range result.Records {
		odds, err := json.Marshal(rec.Odds)
		if err != nil {
			return nil, err
		}
		var history any
		if len(rec.History) > 0 {
			raw, err := json.Marshal(rec.History)
			if err != nil {
				return nil, err
			}
			history = string(raw)
		}
		line := ""
		if rec.Line != nil {
			line = *rec.Line
		}
		matchID := rec.MatchID
		if matchID == "" {
			matchID = result.Match.ID
		}
		rows = append(rows, []any{
			matchID, rec.Market, string(rec.Period), line, rec.Bookmaker,
			string(odds), history, rec.CollectedAt, runID,
		})
	}
	return rows, nil
}
