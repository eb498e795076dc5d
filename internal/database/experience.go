// Resonate - Emotion-Aware Content Recommendation Engine
// Copyright 2026 Affect Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/affectlab/resonate

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/affectlab/resonate/internal/engine"
)

// experienceColumns is the scan order shared by every experience read.
const experienceColumns = `
	user_id, content_id,
	valence_before, arousal_before, stress_before, confidence_before, measured_before,
	valence_after, arousal_after, stress_after, confidence_after, measured_after,
	target_valence, target_arousal, target_stress, intensity,
	reward, q_delta, completed, rating, watched_seconds, total_seconds,
	occurred_at`

// Append writes one experience row. Experiences are immutable once written.
func (db *DB) Append(ctx context.Context, exp engine.Experience) error {
	query := `INSERT INTO experiences (
		id, user_id, content_id,
		valence_before, arousal_before, stress_before, confidence_before, measured_before,
		valence_after, arousal_after, stress_after, confidence_after, measured_after,
		target_valence, target_arousal, target_stress, intensity,
		reward, q_delta, completed, rating, watched_seconds, total_seconds,
		occurred_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := db.getStmt(ctx, query)
	if err != nil {
		return engine.NewStorageFault("append experience", err)
	}

	ts := exp.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	db.appendMu.Lock()
	defer db.appendMu.Unlock()

	_, err = stmt.ExecContext(ctx,
		uuid.New(), exp.UserID, exp.ContentID,
		exp.StateBefore.Valence, exp.StateBefore.Arousal, exp.StateBefore.Stress,
		exp.StateBefore.Confidence, exp.StateBefore.MeasuredAt.UTC(),
		exp.StateAfter.Valence, exp.StateAfter.Arousal, exp.StateAfter.Stress,
		exp.StateAfter.Confidence, exp.StateAfter.MeasuredAt.UTC(),
		exp.Desired.TargetValence, exp.Desired.TargetArousal, exp.Desired.TargetStress,
		string(exp.Desired.Intensity),
		exp.Reward, exp.QDelta, exp.Completed, exp.Rating,
		exp.WatchedSeconds, exp.TotalSeconds,
		ts.UTC(),
	)
	if err != nil {
		return engine.NewStorageFault("append experience", err)
	}
	return nil
}

// ForUser returns up to limit experiences for the user, ordered oldest
// first. A limit of zero or less returns the full history; a positive limit
// keeps the most recent rows.
func (db *DB) ForUser(ctx context.Context, userID string, limit int) ([]engine.Experience, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		stmt, serr := db.getStmt(ctx,
			`SELECT`+experienceColumns+` FROM experiences WHERE user_id = ? ORDER BY seq DESC LIMIT ?`)
		if serr != nil {
			return nil, engine.NewStorageFault("query user experiences", serr)
		}
		rows, err = stmt.QueryContext(ctx, userID, limit)
	} else {
		stmt, serr := db.getStmt(ctx,
			`SELECT`+experienceColumns+` FROM experiences WHERE user_id = ? ORDER BY seq ASC`)
		if serr != nil {
			return nil, engine.NewStorageFault("query user experiences", serr)
		}
		rows, err = stmt.QueryContext(ctx, userID)
	}
	if err != nil {
		return nil, engine.NewStorageFault("query user experiences", err)
	}
	defer rows.Close()

	exps, err := scanExperiences(rows)
	if err != nil {
		return nil, engine.NewStorageFault("query user experiences", err)
	}

	// The limited query reads newest-first; flip back to log order.
	if limit > 0 {
		for i, j := 0, len(exps)-1; i < j; i, j = i+1, j-1 {
			exps[i], exps[j] = exps[j], exps[i]
		}
	}
	return exps, nil
}

func scanExperiences(rows *sql.Rows) ([]engine.Experience, error) {
	var exps []engine.Experience
	for rows.Next() {
		var (
			exp       engine.Experience
			intensity string
		)
		err := rows.Scan(
			&exp.UserID, &exp.ContentID,
			&exp.StateBefore.Valence, &exp.StateBefore.Arousal, &exp.StateBefore.Stress,
			&exp.StateBefore.Confidence, &exp.StateBefore.MeasuredAt,
			&exp.StateAfter.Valence, &exp.StateAfter.Arousal, &exp.StateAfter.Stress,
			&exp.StateAfter.Confidence, &exp.StateAfter.MeasuredAt,
			&exp.Desired.TargetValence, &exp.Desired.TargetArousal, &exp.Desired.TargetStress,
			&intensity,
			&exp.Reward, &exp.QDelta, &exp.Completed, &exp.Rating,
			&exp.WatchedSeconds, &exp.TotalSeconds,
			&exp.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		exp.Desired.Intensity = engine.Intensity(intensity)
		exps = append(exps, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiences: %w", err)
	}
	return exps, nil
}

// CountForUser returns how many experiences the user has logged.
func (db *DB) CountForUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM experiences WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, engine.NewStorageFault("count user experiences", err)
	}
	return count, nil
}

// Count returns the total number of logged experiences.
func (db *DB) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiences`).Scan(&count)
	if err != nil {
		return 0, engine.NewStorageFault("count experiences", err)
	}
	return count, nil
}

// ContentAggregate summarizes one content item's outcomes for a user.
type ContentAggregate struct {
	ContentID      string    `json:"content_id"`
	Plays          int64     `json:"plays"`
	MeanReward     float64   `json:"mean_reward"`
	CompletionRate float64   `json:"completion_rate"`
	RatedPlays     int64     `json:"rated_plays"`
	MeanRating     float64   `json:"mean_rating"`
	LastPlayed     time.Time `json:"last_played"`
}

// ContentAggregates groups a user's experiences by content, best mean
// reward first. Mean rating covers rated plays only.
func (db *DB) ContentAggregates(ctx context.Context, userID string) ([]ContentAggregate, error) {
	query := `
		SELECT
			content_id,
			COUNT(*) AS plays,
			AVG(reward) AS mean_reward,
			AVG(CASE WHEN completed THEN 1.0 ELSE 0.0 END) AS completion_rate,
			COUNT(CASE WHEN rating > 0 THEN 1 END) AS rated_plays,
			COALESCE(AVG(CASE WHEN rating > 0 THEN CAST(rating AS DOUBLE) END), 0) AS mean_rating,
			MAX(occurred_at) AS last_played
		FROM experiences
		WHERE user_id = ?
		GROUP BY content_id
		ORDER BY mean_reward DESC, content_id ASC
	`

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, engine.NewStorageFault("query content aggregates", err)
	}
	defer rows.Close()

	var aggs []ContentAggregate
	for rows.Next() {
		var agg ContentAggregate
		err := rows.Scan(&agg.ContentID, &agg.Plays, &agg.MeanReward,
			&agg.CompletionRate, &agg.RatedPlays, &agg.MeanRating, &agg.LastPlayed)
		if err != nil {
			return nil, engine.NewStorageFault("query content aggregates",
				fmt.Errorf("scan aggregate: %w", err))
		}
		aggs = append(aggs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, engine.NewStorageFault("query content aggregates",
			fmt.Errorf("iterate aggregates: %w", err))
	}
	return aggs, nil
}

// LogTotals is the whole-log summary behind the stats endpoint.
type LogTotals struct {
	Experiences int64 `json:"experiences"`
	Users       int64 `json:"users"`
	Contents    int64 `json:"contents"`
}

// Totals reports log-wide experience, user, and content counts.
func (db *DB) Totals(ctx context.Context) (LogTotals, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t LogTotals
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT user_id), COUNT(DISTINCT content_id)
		FROM experiences`).Scan(&t.Experiences, &t.Users, &t.Contents)
	if err != nil {
		return LogTotals{}, engine.NewStorageFault("query log totals", err)
	}
	return t, nil
}

// Compile-time interface assertion
var _ engine.ExperienceLog = (*DB)(nil)
