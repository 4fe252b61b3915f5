package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LIVEQUIZ_"

type GRPC struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type HTTP struct {
	Addr         string   `yaml:"addr" env:"ADDR"`
	ReadTimeout  string   `yaml:"readTimeout" env:"READ_TIMEOUT"`   // 10s
	WriteTimeout string   `yaml:"writeTimeout" env:"WRITE_TIMEOUT"` // 15s
	IdleTimeout  string   `yaml:"idleTimeout" env:"IDLE_TIMEOUT"`   // 60s
	CORSOrigins  []string `yaml:"corsOrigins" env:"CORS_ORIGINS" envSeparator:","`
	// Токен для POST /internal/sessions (вызывается сервисом-владельцем квизов)
	ServiceToken string `yaml:"serviceToken" env:"SERVICE_TOKEN"`
}

type Logging struct {
	Env       string `yaml:"env" env:"ENV"`              // dev|stage|prod
	Service   string `yaml:"service" env:"SERVICE"`      // live-quiz
	Version   string `yaml:"version" env:"VERSION"`      // v0.1.0
	Backend   string `yaml:"backend" env:"BACKEND"`      // std|zap
	Level     string `yaml:"level" env:"LEVEL"`          // debug|info|warn|error
	AddSource bool   `yaml:"addSource" env:"ADD_SOURCE"` // false|true
	Debug     bool   `yaml:"debug" env:"DEBUG"`          // false|true
}

// Auth — проверка билетов подключения, выданных внешним auth-сервисом.
type Auth struct {
	Issuer           string `yaml:"issuer" env:"ISSUER"`
	Audience         string `yaml:"audience" env:"AUDIENCE"`
	HMACSecret       string `yaml:"hmacSecret" env:"HMAC_SECRET"`
	RSAPublicKeyPath string `yaml:"rsaPublicKeyPath" env:"RSA_PUBLIC_KEY_PATH"`
	ClockSkew        string `yaml:"clockSkew" env:"CLOCK_SKEW"` // 30s
}

type Session struct {
	HeartbeatInterval      string `yaml:"heartbeatInterval" env:"HEARTBEAT_INTERVAL"` // 10s
	MissedHeartbeats       int    `yaml:"missedHeartbeats" env:"MISSED_HEARTBEATS"`   // 3
	HostGracePeriod        string `yaml:"hostGracePeriod" env:"HOST_GRACE_PERIOD"`    // 60s
	CommandBuffer          int    `yaml:"commandBuffer" env:"COMMAND_BUFFER"`
	HostOutboxSize         int    `yaml:"hostOutboxSize" env:"HOST_OUTBOX_SIZE"`
	SinkTimeout            string `yaml:"sinkTimeout" env:"SINK_TIMEOUT"`
	JoinCodeLength         int    `yaml:"joinCodeLength" env:"JOIN_CODE_LENGTH"`
	TerminalRetention      string `yaml:"terminalRetention" env:"TERMINAL_RETENTION"` // 10m
	CleanupInterval        string `yaml:"cleanupInterval" env:"CLEANUP_INTERVAL"`     // 1m
	MaxSessions            int    `yaml:"maxSessions" env:"MAX_SESSIONS"`             // 0 — без лимита
	SubmitLimitPerQuestion int    `yaml:"submitLimitPerQuestion" env:"SUBMIT_LIMIT_PER_QUESTION"`
}

type Scoring struct {
	Policy    string `yaml:"policy" env:"POLICY"` // flat|latency
	MaxPoints int    `yaml:"maxPoints" env:"MAX_POINTS"`
	MinPoints int    `yaml:"minPoints" env:"MIN_POINTS"`
}

type WS struct {
	SendBuffer      int      `yaml:"sendBuffer" env:"SEND_BUFFER"`
	PingInterval    string   `yaml:"pingInterval" env:"PING_INTERVAL"` // 30s
	PongWait        string   `yaml:"pongWait" env:"PONG_WAIT"`         // 60s
	WriteWait       string   `yaml:"writeWait" env:"WRITE_WAIT"`       // 10s
	MaxMessageBytes int64    `yaml:"maxMessageBytes" env:"MAX_MESSAGE_BYTES"`
	AllowedOrigins  []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Postgres — необязательный приёмник итогов сессий; пустой DSN выключает его.
type Postgres struct {
	DSN             string `yaml:"dsn" env:"DSN"`
	MaxConns        int32  `yaml:"maxConns" env:"MAX_CONNS"`
	MaxConnLifetime string `yaml:"maxConnLifetime" env:"MAX_CONN_LIFETIME"`  // 1h
	MaxConnIdleTime string `yaml:"maxConnIdleTime" env:"MAX_CONN_IDLE_TIME"` // 30m
	PingTimeout     string `yaml:"pingTimeout" env:"PING_TIMEOUT"`           // 3s
	// пусто — logging.service
	ApplicationName string `yaml:"applicationName" env:"APPLICATION_NAME"`
}

// Redis — необязательный приёмник итогов; пустой addr выключает его.
type Redis struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"keyPrefix" env:"KEY_PREFIX"`
	Channel   string `yaml:"channel" env:"CHANNEL"`
	TTL       string `yaml:"ttl" env:"TTL"` // 24h
}

type Config struct {
	HTTP     HTTP     `yaml:"http" envPrefix:"HTTP_"`
	GRPC     GRPC     `yaml:"grpc" envPrefix:"GRPC_"`
	Logging  Logging  `yaml:"logging" envPrefix:"LOG_"`
	Auth     Auth     `yaml:"auth" envPrefix:"AUTH_"`
	Session  Session  `yaml:"session" envPrefix:"SESSION_"`
	Scoring  Scoring  `yaml:"scoring" envPrefix:"SCORING_"`
	WS       WS       `yaml:"ws" envPrefix:"WS_"`
	Postgres Postgres `yaml:"postgres" envPrefix:"POSTGRES_"`
	Redis    Redis    `yaml:"redis" envPrefix:"REDIS_"`
}

// LoadConfig читает YAML из CONFIG_PATH, затем накладывает переменные окружения LIVEQUIZ_*.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	if c.Auth.HMACSecret == "" && c.Auth.RSAPublicKeyPath == "" {
		return errors.New("auth.hmacSecret or auth.rsaPublicKeyPath is required")
	}
	switch c.Scoring.Policy {
	case "":
		c.Scoring.Policy = "latency"
	case "flat", "latency":
	default:
		return fmt.Errorf("scoring.policy: unknown policy %q", c.Scoring.Policy)
	}
	if c.Scoring.MinPoints > c.Scoring.MaxPoints && c.Scoring.MaxPoints > 0 {
		return errors.New("scoring.minPoints must not exceed scoring.maxPoints")
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "live-quiz"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = c.Logging.Service
	}
	if c.Scoring.MaxPoints == 0 {
		c.Scoring.MaxPoints = 1000
	}
	if c.Session.SubmitLimitPerQuestion <= 0 {
		c.Session.SubmitLimitPerQuestion = 10
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 64
	}
	if c.WS.MaxMessageBytes <= 0 {
		c.WS.MaxMessageBytes = 4096
	}
	return nil
}

// --- durations ---

func (h HTTP) Timeouts() (read, write, idle time.Duration) {
	return parseDurationOr(10*time.Second, h.ReadTimeout),
		parseDurationOr(15*time.Second, h.WriteTimeout),
		parseDurationOr(60*time.Second, h.IdleTimeout)
}

func (a Auth) Skew() time.Duration { return parseDurationOr(30*time.Second, a.ClockSkew) }

func (s Session) Heartbeat() time.Duration {
	return parseDurationOr(10*time.Second, s.HeartbeatInterval)
}
func (s Session) Grace() time.Duration    { return parseDurationOr(60*time.Second, s.HostGracePeriod) }
func (s Session) SinkWait() time.Duration { return parseDurationOr(5*time.Second, s.SinkTimeout) }
func (s Session) Retention() time.Duration {
	return parseDurationOr(10*time.Minute, s.TerminalRetention)
}
func (s Session) Cleanup() time.Duration { return parseDurationOr(time.Minute, s.CleanupInterval) }

func (w WS) Ping() time.Duration  { return parseDurationOr(30*time.Second, w.PingInterval) }
func (w WS) Pong() time.Duration  { return parseDurationOr(60*time.Second, w.PongWait) }
func (w WS) Write() time.Duration { return parseDurationOr(10*time.Second, w.WriteWait) }

func (r Redis) Expiry() time.Duration { return parseDurationOr(24*time.Hour, r.TTL) }

func (p Postgres) Lifetimes() (maxLifetime, maxIdle time.Duration) {
	return parseDurationOr(time.Hour, p.MaxConnLifetime), parseDurationOr(30*time.Minute, p.MaxConnIdleTime)
}
func (p Postgres) Ping() time.Duration { return parseDurationOr(3*time.Second, p.PingTimeout) }

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
