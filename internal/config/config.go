// Package config содержит логику чтения конфигурации игрового сервиса skatespot.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Значения игровой политики по умолчанию.
const (
	DefaultRunAddress        = "localhost:8080"
	DefaultSessionTTL        = 5 * time.Minute
	DefaultDailySessionLimit = 20
	DefaultMaxScore          = 2000
	DefaultPointsDivisor     = 10
	DefaultDailyClaimPoints  = 10
)

// Config содержит параметры конфигурации игрового сервиса skatespot.
// Игровая политика (лимит сессий, TTL токена, потолок результата, курс обмена
// очков на баллы) задаётся здесь, а не литералами в коде.
type Config struct {
	RunAddress        string        `env:"RUN_ADDRESS"`
	DatabaseURI       string        `env:"DATABASE_URI"`
	SessionTTL        time.Duration `env:"GAME_SESSION_TTL"`
	DailySessionLimit int           `env:"GAME_DAILY_SESSION_LIMIT"`
	MaxScore          int64         `env:"GAME_MAX_SCORE"`
	PointsDivisor     int64         `env:"GAME_POINTS_DIVISOR"`
	DailyClaimPoints  int64         `env:"GAME_DAILY_CLAIM_POINTS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envSessionTTL := cfg.SessionTTL
	envDailyLimit := cfg.DailySessionLimit
	envMaxScore := cfg.MaxScore
	envPointsDivisor := cfg.PointsDivisor
	envDailyClaim := cfg.DailyClaimPoints

	flag.StringVar(&cfg.RunAddress, "a", DefaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.DurationVar(&cfg.SessionTTL, "session-ttl", DefaultSessionTTL, "game session time to live")
	flag.IntVar(&cfg.DailySessionLimit, "session-limit", DefaultDailySessionLimit, "max game sessions per user per day")
	flag.Int64Var(&cfg.MaxScore, "max-score", DefaultMaxScore, "max plausible game score")
	flag.Int64Var(&cfg.PointsDivisor, "points-divisor", DefaultPointsDivisor, "score units per one point")
	flag.Int64Var(&cfg.DailyClaimPoints, "daily-claim-points", DefaultDailyClaimPoints, "points granted by the daily claim")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envSessionTTL != 0 {
		cfg.SessionTTL = envSessionTTL
	}
	if envDailyLimit != 0 {
		cfg.DailySessionLimit = envDailyLimit
	}
	if envMaxScore != 0 {
		cfg.MaxScore = envMaxScore
	}
	if envPointsDivisor != 0 {
		cfg.PointsDivisor = envPointsDivisor
	}
	if envDailyClaim != 0 {
		cfg.DailyClaimPoints = envDailyClaim
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = DefaultRunAddress
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.DailySessionLimit <= 0 {
		cfg.DailySessionLimit = DefaultDailySessionLimit
	}
	if cfg.MaxScore <= 0 {
		cfg.MaxScore = DefaultMaxScore
	}
	if cfg.PointsDivisor <= 0 {
		cfg.PointsDivisor = DefaultPointsDivisor
	}
	if cfg.DailyClaimPoints <= 0 {
		cfg.DailyClaimPoints = DefaultDailyClaimPoints
	}

	return cfg, nil
}
