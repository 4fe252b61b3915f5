// Package redis publishes finished-session summaries to Redis: the latest
// summary is cached under a key and announced on a pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cwrk-planet/live-quiz/internal/domain"
)

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Channel   string
	TTL       time.Duration
}

// NewClient connects and verifies the connection with PING.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

type SummaryPublisher struct {
	client    *redis.Client
	keyPrefix string
	channel   string
	ttl       time.Duration
}

func NewSummaryPublisher(client *redis.Client, cfg Config) *SummaryPublisher {
	p := &SummaryPublisher{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		channel:   cfg.Channel,
		ttl:       cfg.TTL,
	}
	if p.keyPrefix == "" {
		p.keyPrefix = "livequiz:summary:"
	}
	if p.channel == "" {
		p.channel = "livequiz:summaries"
	}
	if p.ttl <= 0 {
		p.ttl = 24 * time.Hour
	}
	return p
}

func (p *SummaryPublisher) key(sessionID string) string {
	return p.keyPrefix + sessionID
}

// Publish caches the summary and announces it in a single round trip.
func (p *SummaryPublisher) Publish(ctx context.Context, s domain.SessionSummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.key(s.SessionID), data, p.ttl)
	pipe.Publish(ctx, p.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

func (p *SummaryPublisher) Get(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	data, err := p.client.Get(ctx, p.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	var s domain.SessionSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &s, nil
}

// Subscribe returns a subscription to summary announcements.
func (p *SummaryPublisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, p.channel)
}
