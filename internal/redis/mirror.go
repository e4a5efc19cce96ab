// Package redis mirrors each room's score ledger into Redis so
// leaderboards survive a warm read path outside the coordinator and
// can be served cheaply over HTTP. The in-memory session store stays
// authoritative; this is a write-behind mirror only.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/quizroom/internal/config"
	"github.com/quizroom/internal/domain"
)

// Mirror is a Redis-backed copy of per-room leaderboards: one sorted
// set of scores plus one hash of cumulative answer times per room.
type Mirror struct {
	client *redis.Client
	logger *slog.Logger
}

// NewMirror connects to Redis and verifies the connection.
func NewMirror(cfg *config.RedisConfig, logger *slog.Logger) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Mirror{client: client, logger: logger}, nil
}

// Close closes the Redis connection
func (m *Mirror) Close() error {
	return m.client.Close()
}

// Name identifies the mirror in sink logs.
func (m *Mirror) Name() string { return "redis-mirror" }

func (m *Mirror) scoreKey(roomCode string) string {
	return fmt.Sprintf("quiz:%s:scores", roomCode)
}

func (m *Mirror) timeKey(roomCode string) string {
	return fmt.Sprintf("quiz:%s:times", roomCode)
}

// RecordScore applies one recorded answer: score delta into the sorted
// set, elapsed time into the hash.
func (m *Mirror) RecordScore(ctx context.Context, ev domain.ScoreEvent) error {
	pipe := m.client.Pipeline()
	if ev.Points != 0 {
		pipe.ZIncrBy(ctx, m.scoreKey(ev.RoomCode), float64(ev.Points), ev.PlayerName)
	} else {
		// Keep zero-score players visible on the mirrored board.
		pipe.ZAddNX(ctx, m.scoreKey(ev.RoomCode), redis.Z{Score: 0, Member: ev.PlayerName})
	}
	pipe.HIncrByFloat(ctx, m.timeKey(ev.RoomCode), ev.PlayerName, ev.TimeTaken)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirroring score: %w", err)
	}
	return nil
}

// ResetRoom clears the mirrored state for a room that was reset.
func (m *Mirror) ResetRoom(ctx context.Context, roomCode string) error {
	return m.DropRoom(ctx, roomCode)
}

// DropRoom deletes all mirrored state for a room.
func (m *Mirror) DropRoom(ctx context.Context, roomCode string) error {
	if err := m.client.Del(ctx, m.scoreKey(roomCode), m.timeKey(roomCode)).Err(); err != nil {
		return fmt.Errorf("dropping mirrored room: %w", err)
	}
	return nil
}

// Top returns the mirrored leaderboard for a room, score descending.
func (m *Mirror) Top(ctx context.Context, roomCode string, n int) ([]domain.LeaderboardEntry, error) {
	results, err := m.client.ZRevRangeWithScores(ctx, m.scoreKey(roomCode), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading mirrored leaderboard: %w", err)
	}

	times, err := m.client.HGetAll(ctx, m.timeKey(roomCode)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading mirrored times: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(results))
	for _, z := range results {
		name, ok := z.Member.(string)
		if !ok {
			continue
		}
		entry := domain.LeaderboardEntry{Name: name, Score: int(z.Score)}
		if raw, ok := times[name]; ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				entry.TimeTaken = v
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
