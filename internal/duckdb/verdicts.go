package duckdb

import (
	"context"
	"fmt"
	"time"

	"github.com/tinytelemetry/cardeck/internal/model"
)

// RecordVerdict appends one swipe to the log.
func (s *Store) RecordVerdict(ctx context.Context, v model.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	at := v.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdicts (card_id, character_id, name, direction, verdict, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.CardID, v.CharacterID, v.Name, v.Direction, v.Verdict, at)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

// VerdictTally counts likes and passes over the whole log.
func (s *Store) VerdictTally(ctx context.Context) (model.VerdictTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var t model.VerdictTally
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE verdict = ?),
			COUNT(*) FILTER (WHERE verdict = ?)
		FROM verdicts`, model.VerdictLike, model.VerdictPass).Scan(&t.Likes, &t.Passes)
	if err != nil {
		return model.VerdictTally{}, fmt.Errorf("tally verdicts: %w", err)
	}
	return t, nil
}

// TopLiked returns the most liked characters, ties broken by name.
func (s *Store) TopLiked(ctx context.Context, limit int) ([]model.CharacterTally, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT character_id, any_value(name) AS name, COUNT(*) AS likes
		FROM verdicts
		WHERE verdict = ?
		GROUP BY character_id
		ORDER BY likes DESC, name ASC
		LIMIT ?`, model.VerdictLike, limit)
	if err != nil {
		return nil, fmt.Errorf("top liked: %w", err)
	}
	defer rows.Close()

	var out []model.CharacterTally
	for rows.Next() {
		var ct model.CharacterTally
		if err := rows.Scan(&ct.CharacterID, &ct.Name, &ct.Count); err != nil {
			return nil, fmt.Errorf("scan top liked: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// DeleteBefore removes verdicts decided before cutoff and returns the number
// of rows deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM verdicts WHERE decided_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete verdicts: %w", err)
	}
	return res.RowsAffected()
}
