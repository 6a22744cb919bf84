// Package redis stores sessions in Redis instead of SQLite.
//
// Selected with SESSION_BACKEND=redis. Useful when several portal instances
// share one user base: every instance resolves the same cookie.
//
// KEY LAYOUT:
//
//	session:<id>          → JSON model.Session, TTL = remaining lifetime
//	user_sessions:<uid>   → SET of session ids, for "log out everywhere"
//
// Expired sessions disappear on their own through key TTLs, so unlike SQLite
// this store needs no janitor sweep. Stale ids left in the per-user set are
// harmless: DeleteUserSessions only counts keys that still existed.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/edulearn/portal/internal/apperror"
	"github.com/edulearn/portal/internal/auth"
	"github.com/edulearn/portal/internal/model"
)

var _ auth.SessionStore = (*SessionStore)(nil)

const (
	sessionPrefix     = "session:"
	userSessionPrefix = "user_sessions:"
)

type SessionStore struct {
	client *goredis.Client
	now    func() time.Time
}

// Options mirrors the REDIS_* config keys.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*SessionStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return &SessionStore{client: client, now: time.Now}, nil
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}

// Ping is used by the /healthz endpoint.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionKey(id string) string     { return sessionPrefix + id }
func userSetKey(userID string) string { return userSessionPrefix + userID }

// CreateSession writes the session and indexes it under its user in one
// MULTI/EXEC. A session that is already past ExpiresAt is not stored.
func (s *SessionStore) CreateSession(ctx context.Context, sess *model.Session) error {
	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis: encoding session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.ID), payload, ttl)
		pipe.SAdd(ctx, userSetKey(sess.UserID), sess.ID)
		// Sessions share one fixed TTL, so the newest one outlives the rest.
		pipe.Expire(ctx, userSetKey(sess.UserID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: storing session for user %s: %w", sess.UserID, err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, apperror.NotFound("Sessie", id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: getting session: %w", err)
	}

	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("redis: decoding session %s: %w", id, err)
	}
	return &sess, nil
}

// DeleteSession is idempotent. The user index entry is removed as well when
// the session can still be read.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	sess, err := s.GetSession(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, userSetKey(sess.UserID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: deleting session: %w", err)
	}
	return nil
}

// DeleteUserSessions removes every session of userID and reports how many
// were still alive.
func (s *SessionStore) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	ids, err := s.client.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: listing sessions of user %s: %w", userID, err)
	}

	var deleted int64
	if len(ids) > 0 {
		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = sessionKey(id)
		}
		deleted, err = s.client.Del(ctx, keys...).Result()
		if err != nil {
			return 0, fmt.Errorf("redis: deleting sessions of user %s: %w", userID, err)
		}
	}

	if err := s.client.Del(ctx, userSetKey(userID)).Err(); err != nil {
		return deleted, fmt.Errorf("redis: deleting session index of user %s: %w", userID, err)
	}
	return deleted, nil
}
