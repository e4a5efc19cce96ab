// Package postgres is the optional durable score store behind the
// in-memory ledger: one row per (room_code, player_name) with
// increment-on-correct and always-increment-time semantics, plus an
// append-only answer event log.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizroom/internal/config"
	"github.com/quizroom/internal/domain"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Name identifies the store in sink logs.
func (r *Repository) Name() string { return "postgres" }

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS quiz_scores (
			id BIGSERIAL PRIMARY KEY,
			room_code VARCHAR(16) NOT NULL,
			player_name VARCHAR(255) NOT NULL,
			score INT NOT NULL DEFAULT 0,
			time_taken DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(room_code, player_name)
		)`,
		`CREATE TABLE IF NOT EXISTS answer_events (
			id BIGSERIAL PRIMARY KEY,
			room_code VARCHAR(16) NOT NULL,
			player_name VARCHAR(255) NOT NULL,
			correct BOOLEAN NOT NULL,
			points INT NOT NULL,
			time_taken DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_scores_room ON quiz_scores(room_code, score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_answer_events_room ON answer_events(room_code, created_at DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// RecordScore applies one recorded answer: points are added on a
// correct answer, elapsed time is always added. Also appends to the
// answer event log; event-log failures are logged but do not fail the
// upsert.
func (r *Repository) RecordScore(ctx context.Context, ev domain.ScoreEvent) error {
	query := `
		INSERT INTO quiz_scores (room_code, player_name, score, time_taken, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (room_code, player_name)
		DO UPDATE SET
			score = quiz_scores.score + $3,
			time_taken = quiz_scores.time_taken + $4,
			updated_at = $5
	`
	now := time.Now()
	if _, err := r.pool.Exec(ctx, query, ev.RoomCode, ev.PlayerName, ev.Points, ev.TimeTaken, now); err != nil {
		return fmt.Errorf("upserting score: %w", err)
	}

	eventQuery := `
		INSERT INTO answer_events (room_code, player_name, correct, points, time_taken)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, eventQuery, ev.RoomCode, ev.PlayerName, ev.Correct, ev.Points, ev.TimeTaken); err != nil {
		r.logger.Warn("failed to record answer event", "room", ev.RoomCode, "error", err)
	}
	return nil
}

// ResetRoom clears the durable scores for a room that was reset. The
// answer event log is kept for auditing.
func (r *Repository) ResetRoom(ctx context.Context, roomCode string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM quiz_scores WHERE room_code = $1`, roomCode); err != nil {
		return fmt.Errorf("resetting room scores: %w", err)
	}
	return nil
}

// DropRoom clears the durable scores for a torn-down room.
func (r *Repository) DropRoom(ctx context.Context, roomCode string) error {
	return r.ResetRoom(ctx, roomCode)
}

// Leaderboard reads a room's durable standings, score descending.
func (r *Repository) Leaderboard(ctx context.Context, roomCode string, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT player_name, score, time_taken
		FROM quiz_scores
		WHERE room_code = $1
		ORDER BY score DESC, id ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Score, &e.TimeTaken); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// BatchReplaceScores reconciles a room's durable rows with a ledger
// snapshot, replacing absolute values. Used by the periodic sync
// worker to repair any drift from lost write-behind events.
func (r *Repository) BatchReplaceScores(ctx context.Context, roomCode string, entries []domain.LeaderboardEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO quiz_scores (room_code, player_name, score, time_taken, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (room_code, player_name)
		DO UPDATE SET score = $3, time_taken = $4, updated_at = $5
	`
	now := time.Now()
	for _, e := range entries {
		batch.Queue(query, roomCode, e.Name, e.Score, e.TimeTaken, now)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch replacing scores: %w", err)
		}
	}
	return nil
}
