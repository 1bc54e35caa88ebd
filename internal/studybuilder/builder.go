// Package studybuilder wires the study service and its backing stores from
// application config.
package studybuilder

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/chess-study-bot/internal/board"
	"github.com/park285/chess-study-bot/internal/config"
	"github.com/park285/chess-study-bot/internal/service/cache"
	svcstudy "github.com/park285/chess-study-bot/internal/service/study"
)

type Deps struct {
	Service  *svcstudy.Service
	Cache    *cache.CacheService
	Repo     svcstudy.Repository
	Renderer board.Renderer

	db *sql.DB
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Cache (Redis required: session snapshots live there)
	cconf, err := parseRedisURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cacheSvc, err := cache.New(*cconf)
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cacheSvc.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	// Repository: Postgres when configured, in-memory otherwise. Saved
	// studies do not survive a restart without a database.
	var (
		repo svcstudy.Repository
		db   *sql.DB
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(16)
		db.SetMaxIdleConns(8)
		db.SetConnMaxLifetime(30 * time.Minute)

		dbCtx, dbCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dbCancel()
		if err := db.PingContext(dbCtx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		repo = svcstudy.NewRepository(db)
	} else {
		logger.Warn("database_url_missing", zap.String("fallback", "memory repository"))
		repo = svcstudy.NewMemoryRepository()
	}

	renderer, err := board.NewRenderer(cfg.BoardTheme)
	if err != nil {
		return nil, fmt.Errorf("init board renderer: %w", err)
	}

	svcCfg := svcstudy.Config{
		SessionTTL:   time.Duration(cfg.StudySessionTTLSec) * time.Second,
		HistoryLimit: cfg.StudyHistoryLimit,
		AllowedRooms: append([]string(nil), cfg.AllowedRooms...),
		BoardTheme:   cfg.BoardTheme,
	}

	service, err := svcstudy.NewService(cacheSvc, repo, renderer, svcCfg, logger)
	if err != nil {
		return nil, err
	}

	return &Deps{Service: service, Cache: cacheSvc, Repo: repo, Renderer: renderer, db: db}, nil
}

// Close releases the cache connection and the database pool if one was opened.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var first error
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			first = err
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func parseRedisURL(raw string) (*cache.Config, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "6379"
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &db); err != nil {
			return nil, fmt.Errorf("invalid redis db in %q", u.Path)
		}
	}
	pass, _ := u.User.Password()
	return &cache.Config{Addr: host + ":" + port, Password: pass, DB: db}, nil
}
