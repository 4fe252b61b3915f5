package logger

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	mu  sync.RWMutex
	def *slog.Logger
)

// Init настраивает slog в зависимости от среды и возвращает корневой логгер.
func Init(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "live-quiz"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	cfg.InstanceID = instanceID(cfg.InstanceID)

	// Выбор бекенда по умолчанию
	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	h = traceHandler{h.WithAttrs(baseAttrs(cfg, time.Now()))}

	base := slog.New(h)
	slog.SetDefault(base)

	mu.Lock()
	def = base
	mu.Unlock()
	return base
}

func L() *slog.Logger {
	mu.RLock()
	l := def
	mu.RUnlock()
	if l != nil {
		return l
	}

	return Init(Config{})
}

// instanceID: явный id, иначе hostname с коротким uuid, без hostname — только uuid.
func instanceID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	short := uuid.NewString()[:8]
	if hn, err := os.Hostname(); err == nil && hn != "" {
		return hn + "-" + short
	}
	return short
}

// baseAttrs — атрибуты, которые получает каждая запись сервиса.
func baseAttrs(cfg Config, startedAt time.Time) []slog.Attr {
	attrs := make([]slog.Attr, 0, 5+len(cfg.Attrs))
	attrs = append(attrs,
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
		slog.String("started_at", startedAt.UTC().Format(time.RFC3339)),
	)
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return append(attrs, cfg.Attrs...)
}
