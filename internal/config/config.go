package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	RelayBaseURL string
	RelayWSURL   string

	BotPrefix string

	RelayAuthToken string

	RedisURL    string
	DatabaseURL string

	AllowedRooms []string

	StudySessionTTLSec int
	StudyHistoryLimit  int
	BoardTheme         string

	PackFetchTimeoutSec int

	MsgTemplateDir string

	EgressMode   string
	EgressDryRun bool
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		BotPrefix:           "/",
		StudySessionTTLSec:  3600,
		StudyHistoryLimit:   10,
		PackFetchTimeoutSec: 15,
		EgressMode:          "auto",
	}

	cfg.RelayBaseURL = strings.TrimSpace(os.Getenv("RELAY_BASE_URL"))
	cfg.RelayWSURL = strings.TrimSpace(os.Getenv("RELAY_WS_URL"))
	if v := strings.TrimSpace(os.Getenv("BOT_PREFIX")); v != "" {
		cfg.BotPrefix = v
	}

	cfg.RelayAuthToken = strings.TrimSpace(os.Getenv("RELAY_AUTH_TOKEN"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ROOMS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedRooms = append(cfg.AllowedRooms, s)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("STUDY_SESSION_TTL")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StudySessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("STUDY_HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StudyHistoryLimit = n
		}
	}
	cfg.BoardTheme = strings.TrimSpace(os.Getenv("BOARD_THEME"))

	if v := strings.TrimSpace(os.Getenv("PACK_FETCH_TIMEOUT")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PackFetchTimeoutSec = n
		}
	}

	cfg.MsgTemplateDir = strings.TrimSpace(os.Getenv("MSG_TEMPLATE_DIR"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("EGRESS_MODE"))); v != "" {
		switch v {
		case "http", "ws", "auto":
			cfg.EgressMode = v
		default:
			return nil, errors.New("EGRESS_MODE must be one of http, ws, auto")
		}
	}
	if v := strings.TrimSpace(os.Getenv("EGRESS_DRYRUN")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EgressDryRun = b
		}
	}

	if cfg.RelayBaseURL == "" {
		return nil, errors.New("RELAY_BASE_URL is required")
	}
	if cfg.RelayWSURL == "" {
		return nil, errors.New("RELAY_WS_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}
