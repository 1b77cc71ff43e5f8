package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nordbooking/nordbooking/shared/models"
)

var (
	RedisClient *redis.Client

	// ErrCacheMiss is returned by KV implementations when a key does not exist
	ErrCacheMiss = errors.New("cache miss")
	// ErrSessionNotFound is returned when a token has no live session
	ErrSessionNotFound = errors.New("session not found")
)

// InitRedis initializes the Redis client
func InitRedis() error {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}

	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	addr := fmt.Sprintf("%s:%s", redisHost, redisPort)

	RedisClient = redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	if _, err := RedisClient.Ping(context.Background()).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logrus.Infof("Connected to Redis at %s", addr)
	return nil
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// KV is the small cache surface the services depend on
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisKV adapts a redis client to KV
type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	if r == nil || r.c == nil {
		return "", ErrCacheMiss
	}
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if r == nil || r.c == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if r == nil || r.c == nil {
		return nil
	}
	return r.c.Del(ctx, keys...).Err()
}

// Token Session Management

// SessionStore keeps token sessions keyed by token hash; the token itself is never stored
type SessionStore struct {
	kv KV
}

func NewSessionStore(kv KV) *SessionStore {
	return &SessionStore{kv: kv}
}

// generateTokenHash creates a SHA256 hash of the access token for use as Redis key
func generateTokenHash(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func sessionKey(accessToken string) string {
	return fmt.Sprintf("token:session:%s", generateTokenHash(accessToken))
}

// Create stores a new session for the access token
func (s *SessionStore) Create(ctx context.Context, accessToken string, profile models.UserProfile, ttl time.Duration) (*models.TokenSession, error) {
	now := time.Now()
	session := &models.TokenSession{
		UserProfile: profile,
		CreatedAt:   now,
		LastUsedAt:  now,
		ExpiresAt:   now.Add(ttl),
		SessionID:   uuid.New().String(),
	}

	sessionData, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.kv.Set(ctx, sessionKey(accessToken), string(sessionData), ttl); err != nil {
		return nil, fmt.Errorf("failed to store session in Redis: %w", err)
	}

	return session, nil
}

// Get retrieves a live session for the access token
func (s *SessionStore) Get(ctx context.Context, accessToken string) (*models.TokenSession, error) {
	key := sessionKey(accessToken)
	sessionData, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session models.TokenSession
	if err := json.Unmarshal([]byte(sessionData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.IsExpired() {
		_ = s.kv.Del(ctx, key)
		return nil, ErrSessionNotFound
	}

	return &session, nil
}

// Revoke removes the session for the access token
func (s *SessionStore) Revoke(ctx context.Context, accessToken string) error {
	if err := s.kv.Del(ctx, sessionKey(accessToken)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
