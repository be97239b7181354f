package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ugcforge/broll/internal/models"
)

func (db *DB) CreateRun(ctx context.Context, run *models.RunRecord) error {
	query := `
		INSERT INTO runs (
			id, topic, scene_count, voice, dry_run, enable_music,
			remove_background, upload, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		run.ID, run.Topic, run.SceneCount, run.Voice, run.DryRun,
		run.EnableMusic, run.RemoveBackground, run.Upload, run.Status,
	).Scan(&run.CreatedAt)
}

func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*models.RunRecord, error) {
	query := `
		SELECT
			id, topic, scene_count, voice, dry_run, enable_music,
			remove_background, upload, status, output_dir, final_video,
			public_url, scenes_succeeded, error_message,
			started_at, finished_at, created_at
		FROM runs
		WHERE id = $1
	`

	run := &models.RunRecord{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Topic, &run.SceneCount, &run.Voice, &run.DryRun,
		&run.EnableMusic, &run.RemoveBackground, &run.Upload, &run.Status,
		&run.OutputDir, &run.FinalVideo, &run.PublicURL, &run.ScenesSucceeded,
		&run.ErrorMessage, &run.StartedAt, &run.FinishedAt, &run.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

func (db *DB) ListRuns(ctx context.Context, status string, limit, offset int) ([]models.RunRecord, error) {
	query := `
		SELECT
			id, topic, scene_count, voice, dry_run, enable_music,
			remove_background, upload, status, output_dir, final_video,
			public_url, scenes_succeeded, error_message,
			started_at, finished_at, created_at
		FROM runs
	`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var run models.RunRecord
		err := rows.Scan(
			&run.ID, &run.Topic, &run.SceneCount, &run.Voice, &run.DryRun,
			&run.EnableMusic, &run.RemoveBackground, &run.Upload, &run.Status,
			&run.OutputDir, &run.FinalVideo, &run.PublicURL, &run.ScenesSucceeded,
			&run.ErrorMessage, &run.StartedAt, &run.FinishedAt, &run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

func (db *DB) CountRuns(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) FROM runs`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}

	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

func (db *DB) UpdateRunStatus(ctx context.Context, id uuid.UUID, status models.RunStatus) error {
	now := time.Now()
	query := `UPDATE runs SET status = $1, started_at = COALESCE(started_at, $2) WHERE id = $3`

	if status == models.RunStatusCompleted || status == models.RunStatusFailed {
		query = `UPDATE runs SET status = $1, finished_at = $2 WHERE id = $3`
	}

	_, err := db.ExecContext(ctx, query, status, now, id)
	return err
}

// CompleteRun records the artifacts of a finished run.
func (db *DB) CompleteRun(ctx context.Context, id uuid.UUID, outputDir, finalVideo, publicURL string, scenesSucceeded int) error {
	query := `
		UPDATE runs
		SET status = $1, output_dir = $2, final_video = $3, public_url = NULLIF($4, ''),
		    scenes_succeeded = $5, finished_at = $6
		WHERE id = $7
	`
	_, err := db.ExecContext(ctx, query,
		models.RunStatusCompleted, outputDir, finalVideo, publicURL, scenesSucceeded, time.Now(), id)
	return err
}

func (db *DB) FailRun(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE runs
		SET status = $1, error_message = $2, finished_at = $3
		WHERE id = $4
	`
	_, err := db.ExecContext(ctx, query, models.RunStatusFailed, errorMessage, time.Now(), id)
	return err
}
