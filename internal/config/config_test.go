package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Quiz.QuestionTime != 10*time.Second {
		t.Errorf("Quiz.QuestionTime = %v, want 10s", cfg.Quiz.QuestionTime)
	}
	if cfg.Quiz.ResetGrace != time.Second {
		t.Errorf("Quiz.ResetGrace = %v, want 1s", cfg.Quiz.ResetGrace)
	}
	if cfg.Redis.Enabled || cfg.Postgres.Enabled || cfg.Kafka.Enabled {
		t.Error("external collaborators should be disabled by default")
	}
	if cfg.Kafka.Topic != "quiz-events" {
		t.Errorf("Kafka.Topic = %q, want quiz-events", cfg.Kafka.Topic)
	}
}

func TestLoad(t *testing.T) {
	content := `
server:
  port: 9090
  read_timeout: 2s
quiz:
  question_time: 15s
  reset_grace: 500ms
redis:
  enabled: true
  addr: "redis.internal:6380"
postgres:
  enabled: true
  host: "${QUIZ_PG_HOST}"
  user: quiz
  password: secret
  database: quizdb
`
	t.Setenv("QUIZ_PG_HOST", "pg.internal")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 2s", cfg.Server.ReadTimeout)
	}
	if cfg.Quiz.QuestionTime != 15*time.Second {
		t.Errorf("Quiz.QuestionTime = %v, want 15s", cfg.Quiz.QuestionTime)
	}
	if cfg.Quiz.ResetGrace != 500*time.Millisecond {
		t.Errorf("Quiz.ResetGrace = %v, want 500ms", cfg.Quiz.ResetGrace)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis.internal:6380" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Postgres.Host != "pg.internal" {
		t.Errorf("env expansion failed, Postgres.Host = %q", cfg.Postgres.Host)
	}

	// Unset sections still pick up defaults.
	if cfg.Server.WriteTimeout != 10*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 10s", cfg.Server.WriteTimeout)
	}
	if cfg.Kafka.Topic != "quiz-events" {
		t.Errorf("Kafka.Topic = %q, want default", cfg.Kafka.Topic)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load of missing file should fail")
	}
}

func TestConnectionString(t *testing.T) {
	pg := PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "quiz",
		Password: "pw",
		Database: "quizdb",
	}
	want := "postgres://quiz:pw@db:5432/quizdb?sslmode=disable"
	if got := pg.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
